// Package points is the external boundary of the simulator: a table of
// typed points addressed as "<unit>.<field>", each backed by a getter and,
// for writable points, a validating setter.
//
// Values written through the table are first coerced to the point's kind
// ([Coerce]) and then handed to the setter under the owning component's
// lock. Rejected writes come back as a [dynamo.PointError] wrapping one of
// the dynamo sentinel errors.
package points
