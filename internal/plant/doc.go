// Package plant hosts the simulated field equipment: a three-phase
// separator, a control valve, an on/off shutdown valve and a transmitter.
//
// A [Plant] owns every unit and steps them once per cycle. Writes from the
// outside go through the point table returned by [Plant.Table]; each unit
// has its own lock, so a write never interleaves with that unit's update.
//
//	p, err := plant.New(config.DefaultConfig(), logger)
//	p.AddMetric(metrics.NewDrift("separator.pressure", 50))
//	res, err := p.Run(ctx, 3000)
package plant
