package integrators

import "github.com/san-kum/fieldsim/internal/dynamo"

// rk4Weights are the classic Runge-Kutta stage offsets and weights.
var (
	rk4Offsets = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

// RK4 is the fourth-order Runge-Kutta step. When the system is
// dynamo.Bounded every stage state is projected into its domain first, so a
// separator never evaluates outflow at a negative level or pressure at a
// liquid height above the vessel.
type RK4 struct {
	k     [4]dynamo.State
	stage dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) resize(n int) {
	if len(r.stage) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.stage = make(dynamo.State, n)
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.resize(n)
	bounded, _ := dyn.(dynamo.Bounded)

	for s := range r.k {
		copy(r.stage, x)
		if s > 0 {
			h := dt * rk4Offsets[s]
			for i := 0; i < n; i++ {
				r.stage[i] += h * r.k[s-1][i]
			}
		}
		if bounded != nil {
			bounded.Project(r.stage)
		}
		copy(r.k[s], dyn.Derive(r.stage, u, t+dt*rk4Offsets[s]))
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		var sum float64
		for s, w := range rk4Weights {
			sum += w * r.k[s][i]
		}
		result[i] = x[i] + dt6*sum
	}
	return result
}
