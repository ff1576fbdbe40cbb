// Package anchor builds the one-anchor-per-value target map over the
// designated target document (the trial record).
//
// The first-occurrence-wins rule here is the deterministic core of the whole
// system: re-running the builder on unchanged OCR text always yields the
// same map, so link destinations never drift between runs.
package anchor

import (
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/confidence"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/ocr"
)

// Anchor is the unique target location for one (type, value) pair.
type Anchor struct {
	Type       detect.RefType `json:"type"`
	Value      string         `json:"value"`
	Page       int            `json:"page"`
	Confidence float64        `json:"confidence"`
}

type key struct {
	t detect.RefType
	v string
}

// Map holds at most one anchor per (type, value). Read-only after Build.
type Map struct {
	anchors map[key]Anchor
	order   []key // insertion order, for deterministic iteration
}

// Lookup returns the anchor for (type, value), if one exists.
func (m *Map) Lookup(t detect.RefType, value string) (Anchor, bool) {
	a, ok := m.anchors[key{t, value}]
	return a, ok
}

// Len returns the number of anchors.
func (m *Map) Len() int {
	return len(m.anchors)
}

// All returns every anchor in first-seen order.
func (m *Map) All() []Anchor {
	out := make([]Anchor, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.anchors[k])
	}
	return out
}

// ByType returns the anchors of one type in first-seen order.
func (m *Map) ByType(t detect.RefType) []Anchor {
	var out []Anchor
	for _, k := range m.order {
		if k.t == t {
			out = append(out, m.anchors[k])
		}
	}
	return out
}

// Builder scans the target document once and records first occurrences.
type Builder struct{}

// NewBuilder creates an anchor builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build makes a single forward pass over the target document's pages, in
// page order, recording only the first page on which each (type, value) is
// seen. Later occurrences are ignored.
func (b *Builder) Build(pages []ocr.Page) *Map {
	m := &Map{anchors: make(map[key]Anchor)}

	for _, page := range pages {
		if page.Empty() {
			continue
		}
		for _, occ := range detect.ScanOccurrences(page.Text) {
			k := key{occ.Type, occ.Value}
			if _, exists := m.anchors[k]; exists {
				continue
			}

			m.anchors[k] = Anchor{
				Type:       occ.Type,
				Value:      occ.Value,
				Page:       page.Number,
				Confidence: confidence.ExactMatch,
			}
			m.order = append(m.order, k)
		}
	}
	return m
}
