// Package metrics summarizes a plant run. Every metric implements
// [plant.Metric] and is fed one snapshot per cycle.
package metrics
