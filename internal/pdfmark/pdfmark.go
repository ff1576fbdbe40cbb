// Package pdfmark draws link annotations into source PDFs.
//
// Materialization is regenerate-only: every run clears all link annotations
// on a page before inserting the current set, so re-running after an
// override or a re-link never stacks duplicate annotations.
package pdfmark

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/linker"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
)

// Mutator abstracts the PDF annotation backend. Rects are normalized page
// fractions; the backend scales them to the page's media box.
type Mutator interface {
	// ClearLinks removes every link annotation on one page of a document.
	ClearLinks(ctx context.Context, docID string, page int) error
	// InsertLink adds one link annotation jumping to a page of the target
	// document.
	InsertLink(ctx context.Context, docID string, page int, rect detect.Rect, targetDocID string, targetPage int) error
	// Save flushes pending mutations for a document.
	Save(ctx context.Context, docID string) error
}

// Materializer writes a linking result into the source PDFs.
type Materializer struct {
	logger  *observability.Logger
	mutator Mutator
}

// NewMaterializer creates a materializer over the given backend.
func NewMaterializer(logger *observability.Logger, mutator Mutator) *Materializer {
	return &Materializer{logger: logger, mutator: mutator}
}

// Materialize draws all links for a case. Pages are cleared exactly once and
// only pages that hold links are touched, so a page whose links were removed
// by a re-link keeps stale annotations until it gains links again; callers
// that need a full wipe pass the previous link set too.
func (m *Materializer) Materialize(ctx context.Context, links []linker.Link) error {
	type pageKey struct {
		docID string
		page  int
	}

	byPage := make(map[pageKey][]linker.Link)
	for _, l := range links {
		k := pageKey{l.SourceDocID, l.SourcePage}
		byPage[k] = append(byPage[k], l)
	}

	keys := make([]pageKey, 0, len(byPage))
	for k := range byPage {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].docID != keys[j].docID {
			return keys[i].docID < keys[j].docID
		}
		return keys[i].page < keys[j].page
	})

	touched := make(map[string]bool)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.mutator.ClearLinks(ctx, k.docID, k.page); err != nil {
			return fmt.Errorf("clear links on %s page %d: %w", k.docID, k.page, err)
		}
		for _, l := range byPage[k] {
			if err := m.mutator.InsertLink(ctx, k.docID, k.page, l.SourceRect, l.TargetDocID, l.TargetPage); err != nil {
				return fmt.Errorf("insert link on %s page %d: %w", k.docID, k.page, err)
			}
		}
		touched[k.docID] = true
	}

	docs := make([]string, 0, len(touched))
	for d := range touched {
		docs = append(docs, d)
	}
	sort.Strings(docs)
	for _, d := range docs {
		if err := m.mutator.Save(ctx, d); err != nil {
			return fmt.Errorf("save %s: %w", d, err)
		}
	}

	m.logger.Info().
		Int("links", len(links)).
		Int("pages", len(keys)).
		Int("documents", len(docs)).
		Msg("Link annotations materialized")

	return nil
}

// MaterializePage redraws a single source page, the narrow path used after a
// one-row override so the rest of the document is untouched.
func (m *Materializer) MaterializePage(ctx context.Context, docID string, page int, links []linker.Link) error {
	if err := m.mutator.ClearLinks(ctx, docID, page); err != nil {
		return fmt.Errorf("clear links on %s page %d: %w", docID, page, err)
	}
	for _, l := range links {
		if l.SourceDocID != docID || l.SourcePage != page {
			continue
		}
		if err := m.mutator.InsertLink(ctx, docID, page, l.SourceRect, l.TargetDocID, l.TargetPage); err != nil {
			return fmt.Errorf("insert link on %s page %d: %w", docID, page, err)
		}
	}
	if err := m.mutator.Save(ctx, docID); err != nil {
		return fmt.Errorf("save %s: %w", docID, err)
	}
	return nil
}
