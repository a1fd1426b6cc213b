package mode

// Mode is the retrieval strategy.
type Mode string

// Search mode constants.
const (
	// Context is strict lexical search: every query word must match.
	Context Mode = "context"
	// Expanded is permissive lexical search over the query plus related terms.
	Expanded Mode = "expanded"
	// Semantic ranks documents by embedding similarity.
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Context || m == Expanded || m == Semantic
}

// IsLexical reports whether the mode is served by the text index.
func (m Mode) IsLexical() bool {
	return m == Context || m == Expanded
}
