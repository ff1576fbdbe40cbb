// Package linker joins detected references against the anchor map under the
// strict confidence policy.
//
// The policy is deliberately precision-first: a reference links only when an
// anchor exists for its (type, value) and the anchor clears the threshold;
// everything else is dropped, never force-linked. Wrong-page links are worse
// than omissions in a courtroom, so recall is sacrificed for precision.
package linker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/anchor"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/confidence"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/oracle"
)

// LinkStatus is the human-review state of a link.
type LinkStatus string

const (
	StatusPending  LinkStatus = "pending"
	StatusApproved LinkStatus = "approved"
	StatusRejected LinkStatus = "rejected"
)

// Link is one reference bound to one anchor.
type Link struct {
	Type        detect.RefType `json:"type"`
	Value       string         `json:"value"`
	SourceDocID string         `json:"sourceDocId"`
	SourcePage  int            `json:"sourcePage"`
	SourceRect  detect.Rect    `json:"sourceRect"`
	SourceText  string         `json:"sourceText"`
	TargetDocID string         `json:"targetDocId"`
	TargetPage  int            `json:"targetPage"`
	TargetText  string         `json:"targetText"`
	Status      LinkStatus     `json:"status"`
	Confidence  float64        `json:"confidence"`
}

// Target identifies the designated link target (the trial record).
type Target struct {
	DocID     string
	PageCount int
}

// Result is the output of one linking run.
type Result struct {
	Links         []Link             `json:"links"`
	Dropped       []detect.Reference `json:"dropped"`
	Total         int                `json:"total"`
	LinkedCount   int                `json:"linked"`
	DroppedCount  int                `json:"droppedCount"`
	NeedsReview   int                `json:"needsReview"` // dropped refs that had a sub-threshold candidate
	ByType        map[string]int     `json:"byType"`
	MinConfidence float64            `json:"minConfidence"`
	Seed          int64              `json:"seed"`
	Hash          string             `json:"deterministicHash"`
}

// Config holds linker settings.
type Config struct {
	MinConfidence  float64
	Seed           int64
	FuzzyAffidavit bool
	Oracle         oracle.Resolver
}

// Linker maps references to at most one anchor each.
type Linker struct {
	logger *observability.Logger
	cfg    Config
}

// NewLinker creates a deterministic linker.
func NewLinker(logger *observability.Logger, cfg Config) *Linker {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = confidence.DefaultMinConfidence
	}
	if cfg.Oracle == nil {
		cfg.Oracle = oracle.Nop{}
	}
	return &Linker{logger: logger, cfg: cfg}
}

// Link classifies every reference as linked or dropped. Anchors must be
// fully built before this runs; with a nil or empty map nothing links and
// every reference is dropped (fail closed, never guess).
func (l *Linker) Link(ctx context.Context, refs []detect.Reference, anchors *anchor.Map, target Target) *Result {
	// Reproducible processing order regardless of detection order.
	ordered := make([]detect.Reference, len(refs))
	copy(ordered, refs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.SourceDocumentID != b.SourceDocumentID {
			return a.SourceDocumentID < b.SourceDocumentID
		}
		if a.SourcePage != b.SourcePage {
			return a.SourcePage < b.SourcePage
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Value < b.Value
	})

	res := &Result{
		Total:         len(ordered),
		ByType:        make(map[string]int),
		MinConfidence: l.cfg.MinConfidence,
		Seed:          l.cfg.Seed,
	}

	for _, ref := range ordered {
		res.ByType[string(ref.Type)]++

		link, hadCandidate, ok := l.resolve(ctx, ref, anchors, target)
		if !ok {
			res.Dropped = append(res.Dropped, ref)
			if hadCandidate {
				res.NeedsReview++
			}
			continue
		}
		res.Links = append(res.Links, link)
	}

	res.LinkedCount = len(res.Links)
	res.DroppedCount = len(res.Dropped)
	res.Hash = hashLinks(res.Links)

	l.logger.Info().
		Int("total", res.Total).
		Int("linked", res.LinkedCount).
		Int("dropped", res.DroppedCount).
		Int("needs_review", res.NeedsReview).
		Str("hash", res.Hash[:16]).
		Msg("Linking complete")

	return res
}

// resolve runs the strict path, then the affidavit fuzzy fallback, then the
// optional oracle. Returns (link, hadCandidate, linked).
func (l *Linker) resolve(ctx context.Context, ref detect.Reference, anchors *anchor.Map, target Target) (Link, bool, bool) {
	// Trial-record cites name their destination page directly.
	if ref.Type == detect.RefTrialRecordCite {
		page, err := strconv.Atoi(ref.Value)
		if err != nil || page < 1 || target.PageCount > 0 && page > target.PageCount {
			return Link{}, false, false
		}
		return l.makeLink(ref, target, page, fmt.Sprintf("page %d", page), confidence.ExactMatch), true, true
	}

	if anchors == nil {
		return Link{}, false, false
	}

	if a, found := anchors.Lookup(ref.Type, ref.Value); found {
		if a.Confidence >= l.cfg.MinConfidence {
			return l.makeLink(ref, target, a.Page, anchorText(a), a.Confidence), true, true
		}
		// Anchor exists but is below threshold: candidate, not a link.
		return l.consultOracle(ctx, ref, target, []oracle.Candidate{{
			Page: a.Page, Confidence: a.Confidence, Method: "exact_" + string(a.Type),
		}})
	}

	// Fuzzy fallback: affidavit names only, and only when the overlap still
	// clears the strict threshold.
	if ref.Type == detect.RefAffidavit && l.cfg.FuzzyAffidavit {
		if a, score, found := l.bestAffidavitMatch(ref, anchors); found {
			if score >= l.cfg.MinConfidence {
				return l.makeLink(ref, target, a.Page, anchorText(a), score), true, true
			}
			return l.consultOracle(ctx, ref, target, []oracle.Candidate{{
				Page: a.Page, Confidence: score, Method: "token_affidavit",
			}})
		}
	}

	return Link{}, false, false
}

// consultOracle hands sub-threshold candidates to the resolver. A pick must
// name one of the candidate pages or it is ignored.
func (l *Linker) consultOracle(ctx context.Context, ref detect.Reference, target Target, candidates []oracle.Candidate) (Link, bool, bool) {
	decision, err := l.cfg.Oracle.Resolve(ctx, ref, candidates, l.cfg.MinConfidence, l.cfg.Seed)
	if err != nil {
		l.logger.Warn().Err(err).Str("type", string(ref.Type)).Str("value", ref.Value).Msg("Oracle resolution failed")
		return Link{}, true, false
	}
	if !decision.Pick {
		return Link{}, true, false
	}
	for _, c := range candidates {
		if c.Page == decision.Page {
			return l.makeLink(ref, target, c.Page, "", c.Confidence), true, true
		}
	}
	l.logger.Warn().
		Int("picked_page", decision.Page).
		Str("value", ref.Value).
		Msg("Oracle picked a page outside the candidate list; ignored")
	return Link{}, true, false
}

// bestAffidavitMatch finds the affidavit anchor with the highest token
// overlap. Ties break to the lowest page so the result never depends on
// map iteration order.
func (l *Linker) bestAffidavitMatch(ref detect.Reference, anchors *anchor.Map) (anchor.Anchor, float64, bool) {
	refTokens := nameTokens(ref.Value)
	var (
		best      anchor.Anchor
		bestScore float64
		found     bool
	)
	for _, a := range anchors.ByType(detect.RefAffidavit) {
		score := confidence.TokenOverlap(refTokens, nameTokens(a.Value))
		if score > bestScore || (score == bestScore && found && a.Page < best.Page) {
			best, bestScore, found = a, score, true
		}
	}
	if !found || bestScore == 0 {
		return anchor.Anchor{}, 0, false
	}
	return best, bestScore, true
}

func (l *Linker) makeLink(ref detect.Reference, target Target, page int, targetText string, conf float64) Link {
	return Link{
		Type:        ref.Type,
		Value:       ref.Value,
		SourceDocID: ref.SourceDocumentID,
		SourcePage:  ref.SourcePage,
		SourceRect:  ref.Rect,
		SourceText:  ref.Text,
		TargetDocID: target.DocID,
		TargetPage:  page,
		TargetText:  targetText,
		Status:      StatusPending,
		Confidence:  conf,
	}
}

// anchorText reconstructs the phrase the anchor was found by.
func anchorText(a anchor.Anchor) string {
	switch a.Type {
	case detect.RefExhibit:
		return "Exhibit " + a.Value
	case detect.RefTab:
		return "Tab " + a.Value
	case detect.RefSchedule:
		return "Schedule " + a.Value
	case detect.RefAffidavit:
		return "Affidavit of " + a.Value
	default:
		return strings.ReplaceAll(string(a.Type), "_", " ")
	}
}

// nameTokens splits a normalized affidavit name into comparison tokens,
// skipping fragments too short to be discriminating.
func nameTokens(name string) []string {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(name)) {
		if len(t) > 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// hashLinks produces the deterministic audit hash over the linked set.
func hashLinks(links []Link) string {
	type row struct {
		SourceDocID string `json:"sourceDocId"`
		SourcePage  int    `json:"sourcePage"`
		Type        string `json:"type"`
		Value       string `json:"value"`
		TargetPage  int    `json:"targetPage"`
	}
	rows := make([]row, 0, len(links))
	for _, l := range links {
		rows = append(rows, row{l.SourceDocID, l.SourcePage, string(l.Type), l.Value, l.TargetPage})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.SourceDocID != b.SourceDocID {
			return a.SourceDocID < b.SourceDocID
		}
		if a.SourcePage != b.SourcePage {
			return a.SourcePage < b.SourcePage
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Value < b.Value
	})
	data, _ := json.Marshal(rows)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
