package types

// Event is the wire-friendly representation of a structured state change,
// rendered as a type tag plus a flat attribute map so it can be handed to
// any downstream subscriber without that subscriber knowing the concrete
// Go type that produced it.
type Event struct {
	Type       string
	Attributes map[string]string
}
