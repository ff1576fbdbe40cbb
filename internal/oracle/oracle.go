// Package oracle defines the optional AI-assisted disambiguation boundary.
//
// The oracle is consulted only for references the strict path could not
// link, and only ever chooses among candidates the deterministic scorer
// already produced. It can never invent a destination page: a pick naming a
// page outside the candidate list is discarded by the linker.
package oracle

import (
	"context"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
)

// Candidate is one deterministic destination candidate for a reference.
type Candidate struct {
	Page       int     `json:"destPage"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Decision is the oracle's verdict for one ambiguous reference.
type Decision struct {
	Pick   bool   `json:"pick"`
	Page   int    `json:"destPage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Resolver resolves ambiguous references. Implementations must be
// reproducible for a given seed: same inputs, same decision.
type Resolver interface {
	Resolve(ctx context.Context, ref detect.Reference, candidates []Candidate, minConfidence float64, seed int64) (Decision, error)
}

// Nop is a Resolver that never picks; every ambiguous reference stays
// unlinked for human review. This is the default.
type Nop struct{}

// Resolve implements Resolver.
func (Nop) Resolve(ctx context.Context, ref detect.Reference, candidates []Candidate, minConfidence float64, seed int64) (Decision, error) {
	return Decision{Pick: false, Reason: "oracle disabled"}, nil
}
