// Package automation drives the plant from scripts: YAML scenarios of timed
// point writes and ramps, parameter sweeps and Monte Carlo inflow trials.
package automation
