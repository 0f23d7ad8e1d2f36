// Package transmitter generates the output of a simulated analog
// transmitter: a triangular ramp, a 0.1 Hz sine or a 10 s sawtooth inside
// the measuring range, or a value forced to either end of the scale to
// exercise out-of-range alarms.
//
// The ramp direction is part of [State], so two transmitters never share
// it.
package transmitter
