package testutil

// DefaultRunID is what FixedRunIDGenerator returns for an empty ID.
const DefaultRunID = "run-00000000-0000-7000-8000-000000000000"

// FixedRunIDGenerator names every run the same, so golden reports stay
// byte-identical. It satisfies pass.RunIDGenerator.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator returns a generator for id, or DefaultRunID if id
// is empty.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
