// Package dynamo provides the primitives shared by the equipment models and
// the host plant:
//
//   - [State] and [Control]: vectors for models with a continuous part
//   - [System]: interface for dX/dt = f(X, u, t) models
//   - [Integrator]: one explicit step of a [System]
//   - [Cycle]: one tick of the fixed-period scheduler
//
// The sentinel errors in this package are only returned at the point
// boundary and by the host. Model updates never fail; they clamp.
//
// # Thread Safety
//
// Nothing in this package locks. Callers serialize access per component.
package dynamo
