package types

// Event represents a structured state change recorded by the ledger. The
// attribute map carries string-encoded payload fields so off-ledger indexers
// can consume events without extra decoding.
type Event struct {
	Type       string
	Attributes map[string]string
}
