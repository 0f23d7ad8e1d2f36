// Package physics provides the process models of the plant.
//
//   - [Separator]: three-phase oil/water/gas vessel. Its continuous part
//     implements [dynamo.System] and is advanced by an injected
//     [dynamo.Integrator]; the gas mass is kept internal and pressure is
//     derived from it each step.
//   - [UpdateValve]: control valve with a linear or equal-percentage
//     characteristic and an optional [ValveErrorModel] applying dead time,
//     stiction, hysteresis and positioner bias.
//
// Models never fail at runtime. Out-of-range results are clamped to the
// physical envelope:
//
//	sep := physics.NewSeparator(physics.DefaultSeparatorConstants(), integrators.NewEuler())
//	st := sep.NewState(physics.DefaultHOil, physics.DefaultHWater, physics.DefaultPressure)
//	sep.Update(&st, physics.DefaultSeparatorConfig(), 0.1)
package physics
