// Package storage keeps recorded runs on disk, one directory per run with
// a metadata.json and a points.csv holding one row per cycle.
package storage
