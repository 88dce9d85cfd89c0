// Package passage holds page-level text units written to and read from the vector index.
package passage

import "strings"

// Page is one parsed PDF page ready for embedding.
type Page struct {
	Number int // 1-based
	Text   string
	Vector []float32
}

// Passage is a search hit from one document namespace.
type Passage struct {
	Page  int
	Text  string
	Score float64 // 0..1, higher is more similar
}

// Join concatenates passage texts in the given order, separated by blank lines.
func Join(passages []Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
