// Package review implements the human-in-the-loop correction surface: page
// overrides for individual links and approve/reject status transitions.
package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/linker"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/pdfmark"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/storage"
)

// Validation errors.
var (
	ErrBadIdentifier = errors.New("override must name a tab number or a (type, value) pair")
	ErrBadPage       = errors.New("override page must be a positive integer")
)

// OverrideRequest names one link identity and its corrected destination.
// Either TabNumber or the RefType/RefValue pair identifies the link.
type OverrideRequest struct {
	TabNumber *int   `json:"tabNumber,omitempty"`
	RefType   string `json:"refType,omitempty"`
	RefValue  string `json:"refValue,omitempty"`
	NewPage   int    `json:"newPage"`
}

// OverrideResult reports what an override changed.
type OverrideResult struct {
	RefType      string `json:"refType"`
	RefValue     string `json:"refValue"`
	NewPage      int    `json:"newPage"`
	RowsChanged  int    `json:"rowsChanged"`
	Materialized bool   `json:"materialized"`
}

// Service applies review actions against the persisted link table and keeps
// the PDF annotations in step.
type Service struct {
	logger       *observability.Logger
	links        *storage.LinkRepository
	materializer *pdfmark.Materializer
}

// NewService creates a review service. The materializer may be nil when the
// deployment defers annotation redraw to a later full materialization.
func NewService(logger *observability.Logger, links *storage.LinkRepository, materializer *pdfmark.Materializer) *Service {
	return &Service{logger: logger, links: links, materializer: materializer}
}

// Override rewrites the destination page of exactly the rows matching the
// identifier. No other row is recomputed or touched, and no detection or
// linking reruns. Surfaces storage.ErrLinksNotBuilt when the case has no
// link table and storage.ErrNotFound when the identifier matches nothing.
func (s *Service) Override(ctx context.Context, caseID uuid.UUID, req OverrideRequest) (*OverrideResult, error) {
	refType, refValue, err := resolveIdentifier(req)
	if err != nil {
		return nil, err
	}
	if req.NewPage < 1 {
		return nil, ErrBadPage
	}

	n, err := s.links.UpdateDestination(ctx, caseID, refType, refValue, req.NewPage)
	if err != nil {
		return nil, err
	}

	res := &OverrideResult{
		RefType:     refType,
		RefValue:    refValue,
		NewPage:     req.NewPage,
		RowsChanged: n,
	}

	if s.materializer != nil {
		if err := s.rematerialize(ctx, caseID, refType, refValue); err != nil {
			// The row update already committed; report the redraw failure
			// without rolling the override back.
			s.logger.Warn().Err(err).
				Str("ref_type", refType).
				Str("ref_value", refValue).
				Msg("Override persisted but annotation redraw failed")
			return res, nil
		}
		res.Materialized = true
	}

	s.logger.Info().
		Str("case_id", caseID.String()).
		Str("ref_type", refType).
		Str("ref_value", refValue).
		Int("new_page", req.NewPage).
		Int("rows", n).
		Msg("Link destination overridden")

	return res, nil
}

// rematerialize redraws only the source pages that hold the overridden rows.
func (s *Service) rematerialize(ctx context.Context, caseID uuid.UUID, refType, refValue string) error {
	records, err := s.links.ListByCase(ctx, caseID)
	if err != nil {
		return fmt.Errorf("load links for redraw: %w", err)
	}

	type pageKey struct {
		docID string
		page  int
	}
	affected := make(map[pageKey]bool)
	for _, r := range records {
		if r.RefType == refType && r.RefValue == refValue {
			affected[pageKey{r.SourceDocID, r.SourcePage}] = true
		}
	}

	all := toLinks(records)
	for k := range affected {
		if err := s.materializer.MaterializePage(ctx, k.docID, k.page, all); err != nil {
			return err
		}
	}
	return nil
}

// Approve marks one link approved.
func (s *Service) Approve(ctx context.Context, linkID uuid.UUID) error {
	return s.links.UpdateStatus(ctx, linkID, string(linker.StatusApproved))
}

// Reject marks one link rejected. Rejected links stay in the table for the
// audit trail; the materializer skips them on the next full redraw.
func (s *Service) Reject(ctx context.Context, linkID uuid.UUID) error {
	return s.links.UpdateStatus(ctx, linkID, string(linker.StatusRejected))
}

func resolveIdentifier(req OverrideRequest) (string, string, error) {
	if req.TabNumber != nil {
		if *req.TabNumber < 1 {
			return "", "", ErrBadIdentifier
		}
		return string(detect.RefTab), strconv.Itoa(*req.TabNumber), nil
	}
	if req.RefType == "" || req.RefValue == "" {
		return "", "", ErrBadIdentifier
	}
	return req.RefType, req.RefValue, nil
}

func toLinks(records []*storage.LinkRecord) []linker.Link {
	links := make([]linker.Link, 0, len(records))
	for _, r := range records {
		if r.Status == string(linker.StatusRejected) {
			continue
		}
		links = append(links, linker.Link{
			Type:        detect.RefType(r.RefType),
			Value:       r.RefValue,
			SourceDocID: r.SourceDocID,
			SourcePage:  r.SourcePage,
			SourceRect:  detect.Rect{X: r.RectX, Y: r.RectY, Width: r.RectW, Height: r.RectH},
			SourceText:  r.SourceText,
			TargetDocID: r.TargetDocID,
			TargetPage:  r.TargetPage,
			TargetText:  r.TargetText,
			Status:      linker.LinkStatus(r.Status),
			Confidence:  r.Confidence,
		})
	}
	return links
}
