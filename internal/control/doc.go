// Package control provides the flow loop that drives the control valve
// signal in auto mode: a [PID] with output limits and conditional
// integration.
//
// # Usage
//
//	pid := control.NewPID(2.0, 1.0, 0.0, 5.0) // Kp, Ki, Kd, flow setpoint
//	signal := pid.Compute(flow, now)
package control
