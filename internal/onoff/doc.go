// Package onoff models a shutdown valve actuator driven by up to three
// solenoids (ESD, PSD, PCS).
//
// The valve opens only when every configured solenoid is energized and
// closes as soon as one drops out. Both motions take the configured travel
// time. [Transition] is a pure function of status, config, inputs and
// elapsed time; [Valve] keeps them together for the host.
//
//	v := onoff.NewValve(onoff.DefaultConfig())
//	v.Inputs.Solenoids = [3]bool{true, true, true}
//	v.Update(100)
package onoff
