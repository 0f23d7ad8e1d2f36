package control

import "github.com/san-kum/fieldsim/internal/dynamo"

// PID computes a controller output in percent from a measured process value.
// Integration stops while the output is saturated.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Setpoint float64
	Bias     float64
	OutMin   float64
	OutMax   float64
	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, setpoint float64) *PID {
	return &PID{
		Kp:       kp,
		Ki:       ki,
		Kd:       kd,
		Setpoint: setpoint,
		OutMin:   0,
		OutMax:   100,
		first:    true,
	}
}

func (p *PID) Compute(pv, t float64) float64 {
	err := p.Setpoint - pv

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		return p.clamp(p.Bias + p.Kp*err + p.Ki*p.integral)
	}

	dt := t - p.prevT
	if dt <= 0 {
		return p.clamp(p.Bias + p.Kp*err + p.Ki*p.integral)
	}

	derivative := (err - p.prevErr) / dt
	integral := p.integral + err*dt
	u := p.Bias + p.Kp*err + p.Ki*integral + p.Kd*derivative
	if u >= p.OutMin && u <= p.OutMax {
		p.integral = integral
	}

	p.prevErr = err
	p.prevT = t
	return p.clamp(u)
}

func (p *PID) clamp(u float64) float64 {
	return dynamo.Clamp(u, p.OutMin, p.OutMax)
}

// Reset clears integral and derivative state. The next output starts from
// bias.
func (p *PID) Reset(bias float64) {
	p.integral = 0
	p.prevErr = 0
	p.Bias = bias
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp":       p.Kp,
		"ki":       p.Ki,
		"kd":       p.Kd,
		"setpoint": p.Setpoint,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	case "setpoint":
		p.Setpoint = value
	}
}
