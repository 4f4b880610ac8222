package testutil

// FixedIDGenerator returns the same identifier every time.
//
// Use it where every correlation id in a trace should be identical, so the
// trace can be compared byte for byte against a golden file.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator. An empty id becomes "test-id".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-id"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
