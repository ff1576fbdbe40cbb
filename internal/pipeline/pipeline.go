// Package pipeline orchestrates the per-case flow: OCR, index parsing,
// anchor building, reference detection, linking, persistence, and PDF
// materialization.
//
// Stage ordering is a hard invariant. The target document is processed and
// its anchor map fully built before any source reference is resolved; the
// linker never sees a partial anchor map.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/anchor"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/cache"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/config"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/index"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/linker"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/manifest"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/metrics"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/ocr"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/pdfmark"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/storage"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/textnorm"
)

// Processor runs the OCR and normalization stage for one document.
type Processor struct {
	logger     *observability.Logger
	engine     ocr.Engine
	cache      cache.Client
	cacheTTL   time.Duration
	normalizer *textnorm.Normalizer
	pages      *storage.PageRepository
	metrics    *metrics.Metrics
	cfg        config.PipelineConfig
}

// NewProcessor creates a document processor. The cache may be nil.
func NewProcessor(
	logger *observability.Logger,
	engine ocr.Engine,
	cacheClient cache.Client,
	cacheTTL time.Duration,
	normalizer *textnorm.Normalizer,
	pages *storage.PageRepository,
	m *metrics.Metrics,
	cfg config.PipelineConfig,
) *Processor {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Processor{
		logger:     logger,
		engine:     engine,
		cache:      cacheClient,
		cacheTTL:   cacheTTL,
		normalizer: normalizer,
		pages:      pages,
		metrics:    m,
		cfg:        cfg,
	}
}

// ProcessDocument OCRs every page of a document in page order. A failed page
// is recorded as empty with zero confidence and processing continues; only
// cancellation stops the loop early.
func (p *Processor) ProcessDocument(ctx context.Context, doc *storage.Document) ([]ocr.Page, error) {
	log := p.logger.WithDocument(doc.ID.String())
	pages := make([]ocr.Page, 0, doc.PageCount)

	for n := 1; n <= doc.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			return pages, fmt.Errorf("processing cancelled at page %d: %w", n, err)
		}
		page := p.processPage(ctx, log, doc, n)
		pages = append(pages, page)
	}

	issues := 0
	for _, pg := range pages {
		if pg.Empty() {
			issues++
		}
	}
	log.Info().
		Int("pages", len(pages)).
		Int("pages_with_issues", issues).
		Msg("Document OCR complete")

	return pages, nil
}

// ProcessDocumentBatched splits the document into disjoint page ranges and
// runs them concurrently. Ranges never overlap, so each worker writes its own
// slice segment and its own page rows without coordination.
func (p *Processor) ProcessDocumentBatched(ctx context.Context, doc *storage.Document) ([]ocr.Page, error) {
	batchSize := p.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 25
	}
	if doc.PageCount <= batchSize {
		return p.ProcessDocument(ctx, doc)
	}

	log := p.logger.WithDocument(doc.ID.String())
	pages := make([]ocr.Page, doc.PageCount)

	g, gctx := errgroup.WithContext(ctx)
	limit := p.cfg.MaxConcurrentBatches
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for start := 1; start <= doc.PageCount; start += batchSize {
		end := start + batchSize - 1
		if end > doc.PageCount {
			end = doc.PageCount
		}
		g.Go(func() error {
			for n := start; n <= end; n++ {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("batch %d-%d cancelled at page %d: %w", start, end, n, err)
				}
				pages[n-1] = p.processPage(gctx, log, doc, n)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().Int("pages", doc.PageCount).Int("batch_size", batchSize).Msg("Batched OCR complete")
	return pages, nil
}

// processPage resolves one page from cache or the OCR engine, normalizes it,
// and records it. Never returns an error: OCR failure degrades to a recorded
// failed page.
func (p *Processor) processPage(ctx context.Context, log *observability.Logger, doc *storage.Document, n int) ocr.Page {
	if page, ok := p.cachedPage(ctx, doc.ID.String(), n); ok {
		p.metrics.PagesProcessed.WithLabelValues("cached").Inc()
		return page
	}

	started := time.Now()
	page, err := p.engine.RecognizePage(ctx, doc.ID.String(), doc.PDFPath, n)
	p.metrics.PageDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		log.Warn().Err(err).Int("page", n).Msg("OCR failed; recording empty page")
		page = ocr.FailedPage(doc.ID.String(), n)
		p.metrics.PagesProcessed.WithLabelValues("failed").Inc()
	} else {
		role := textnorm.RoleBody
		if textnorm.HasIndexHeading(page.Text) {
			role = textnorm.RoleIndex
		}
		page.Text = p.normalizer.Normalize(page.Text, role)
		p.metrics.PagesProcessed.WithLabelValues("ok").Inc()
	}

	p.recordPage(ctx, log, doc.ID, page)
	p.storePage(ctx, doc.ID.String(), n, page)
	return page
}

func (p *Processor) cachedPage(ctx context.Context, docID string, n int) (ocr.Page, bool) {
	if p.cache == nil {
		return ocr.Page{}, false
	}
	data, err := p.cache.Get(ctx, cache.PageKey(docID, n))
	if err != nil {
		return ocr.Page{}, false
	}
	var page ocr.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return ocr.Page{}, false
	}
	return page, true
}

func (p *Processor) storePage(ctx context.Context, docID string, n int, page ocr.Page) {
	if p.cache == nil || page.Empty() {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, cache.PageKey(docID, n), data, p.cacheTTL); err != nil {
		p.logger.Debug().Err(err).Str("document_id", docID).Int("page", n).Msg("Page cache write failed")
	}
}

// recordPage upserts the page row with retry. A page that still cannot be
// persisted is dumped to the emergency directory so OCR work is never lost.
func (p *Processor) recordPage(ctx context.Context, log *observability.Logger, docID uuid.UUID, page ocr.Page) {
	rec := &storage.PageRecord{
		DocumentID: docID,
		PageNumber: page.Number,
		Text:       page.Text,
		Confidence: page.Confidence,
	}
	err := retryPersist(ctx, p.cfg, func() error {
		return p.pages.Upsert(ctx, rec)
	})
	if err != nil {
		log.Warn().Err(err).Int("page", page.Number).Msg("Page persistence failed; dumping to emergency dir")
		dumpEmergency(log, p.cfg.EmergencyDir, fmt.Sprintf("page-%s-%d.json", docID, page.Number), rec)
	}
}

// CaseResult is the full output of one case run.
type CaseResult struct {
	CaseID     uuid.UUID
	Target     *storage.Document
	IndexItems map[string][]index.Item // per source document ID
	Anchors    *anchor.Map
	Links      *linker.Result
	Manifest   *manifest.Manifest
}

// CasePipeline wires every stage for end-to-end case processing.
type CasePipeline struct {
	logger       *observability.Logger
	processor    *Processor
	parser       *index.Parser
	templates    index.TemplateProvider
	detector     *detect.Detector
	builder      *anchor.Builder
	linker       *linker.Linker
	docs         *storage.DocumentRepository
	links        *storage.LinkRepository
	materializer *pdfmark.Materializer
	metrics      *metrics.Metrics
	cfg          config.PipelineConfig
	scanPages    int
	continuation int
}

// NewCasePipeline assembles the case pipeline. The materializer may be nil
// when annotation drawing is deferred; templates may be nil when no document
// profile is registered.
func NewCasePipeline(
	logger *observability.Logger,
	processor *Processor,
	parser *index.Parser,
	templates index.TemplateProvider,
	detector *detect.Detector,
	builder *anchor.Builder,
	lk *linker.Linker,
	docs *storage.DocumentRepository,
	links *storage.LinkRepository,
	materializer *pdfmark.Materializer,
	m *metrics.Metrics,
	cfg config.PipelineConfig,
	det config.DetectionConfig,
) *CasePipeline {
	if m == nil {
		m = metrics.NewNop()
	}
	scanPages := det.IndexScanPages
	if scanPages < 1 {
		scanPages = 15
	}
	continuation := det.IndexContinuation
	if continuation < 0 {
		continuation = 0
	}
	return &CasePipeline{
		logger:       logger,
		processor:    processor,
		parser:       parser,
		templates:    templates,
		detector:     detector,
		builder:      builder,
		linker:       lk,
		docs:         docs,
		links:        links,
		materializer: materializer,
		metrics:      m,
		cfg:          cfg,
		scanPages:    scanPages,
		continuation: continuation,
	}
}

// ProcessCase runs the full pipeline for one case. Fails closed when the case
// has no designated target: nothing is detected, linked, or written.
func (cp *CasePipeline) ProcessCase(ctx context.Context, caseID uuid.UUID) (*CaseResult, error) {
	started := time.Now()
	log := cp.logger.WithCase(caseID.String())

	target, err := cp.docs.GetTarget(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("resolve target document: %w", err)
	}

	// Target first: the anchor map must be complete before linking starts.
	targetPages, err := cp.processor.ProcessDocumentBatched(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("process target %s: %w", target.ID, err)
	}
	anchors := cp.builder.Build(targetPages)
	log.Info().Int("anchors", anchors.Len()).Msg("Anchor map built")

	sources, err := cp.docs.ListSources(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list source documents: %w", err)
	}

	result := &CaseResult{
		CaseID:     caseID,
		Target:     target,
		IndexItems: make(map[string][]index.Item),
		Anchors:    anchors,
	}

	var refs []detect.Reference
	for _, src := range sources {
		srcPages, err := cp.processor.ProcessDocumentBatched(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("process source %s: %w", src.ID, err)
		}

		if items := cp.parseIndex(src, srcPages); len(items) > 0 {
			result.IndexItems[src.ID.String()] = items
		}

		detected := cp.detector.Detect(srcPages, src.ID.String())
		for _, r := range detected {
			cp.metrics.RefsDetected.WithLabelValues(string(r.Type)).Inc()
		}
		refs = append(refs, detected...)
	}
	log.Info().Int("references", len(refs)).Int("sources", len(sources)).Msg("Reference detection complete")

	linkResult := cp.linker.Link(ctx, refs, anchors, linker.Target{
		DocID:     target.ID.String(),
		PageCount: target.PageCount,
	})
	result.Links = linkResult
	cp.metrics.LinksMade.Add(float64(linkResult.LinkedCount))
	cp.metrics.LinksDropped.Add(float64(linkResult.DroppedCount))

	if err := cp.persistLinks(ctx, log, caseID, linkResult.Links); err != nil {
		return nil, err
	}

	if cp.materializer != nil {
		if err := cp.materializer.Materialize(ctx, linkResult.Links); err != nil {
			return nil, fmt.Errorf("materialize annotations: %w", err)
		}
	}

	result.Manifest = manifest.Build(caseID.String(), linkResult, "")
	cp.metrics.CaseDuration.Observe(time.Since(started).Seconds())

	log.Info().
		Int("linked", linkResult.LinkedCount).
		Int("dropped", linkResult.DroppedCount).
		Dur("elapsed", time.Since(started)).
		Msg("Case processing complete")

	return result, nil
}

// parseIndex scans the leading pages of a document for an INDEX listing.
//
// A registered document profile supplies canonical labels two ways: numbering
// destroyed by OCR is rebuilt before parsing, and a document whose index
// cannot be parsed at all falls back to the template items at template
// confidence. Long listings spill onto the pages after the index page; the
// joined text is bounded by the parser's own stop markers.
func (cp *CasePipeline) parseIndex(doc *storage.Document, pages []ocr.Page) []index.Item {
	var canonical []string
	if cp.templates != nil {
		canonical = cp.templates.CanonicalItems(doc.Filename)
	}

	limit := cp.scanPages
	if limit > len(pages) {
		limit = len(pages)
	}
	for i := 0; i < limit; i++ {
		if pages[i].Empty() {
			continue
		}
		text := cp.processor.normalizer.EnforceIndexNumbering(pages[i].Text, canonical)
		items := cp.parser.Parse(text)
		if len(items) == 0 {
			continue
		}

		for j := i + 1; j < len(pages) && j <= i+cp.continuation; j++ {
			if pages[j].Empty() {
				continue
			}
			text += "\n" + pages[j].Text
		}
		if joined := cp.parser.Parse(text); len(joined) > len(items) {
			return joined
		}
		return items
	}

	if len(canonical) > 0 {
		return index.FallbackItems(canonical)
	}
	return nil
}

// persistLinks rewrites the case's link table with retry, dumping the link
// set to the emergency directory when the database stays unavailable.
func (cp *CasePipeline) persistLinks(ctx context.Context, log *observability.Logger, caseID uuid.UUID, links []linker.Link) error {
	records := make([]*storage.LinkRecord, 0, len(links))
	for _, l := range links {
		records = append(records, &storage.LinkRecord{
			RefType:     string(l.Type),
			RefValue:    l.Value,
			SourceDocID: l.SourceDocID,
			SourcePage:  l.SourcePage,
			RectX:       l.SourceRect.X,
			RectY:       l.SourceRect.Y,
			RectW:       l.SourceRect.Width,
			RectH:       l.SourceRect.Height,
			SourceText:  l.SourceText,
			TargetDocID: l.TargetDocID,
			TargetPage:  l.TargetPage,
			TargetText:  l.TargetText,
			Status:      string(l.Status),
			Confidence:  l.Confidence,
		})
	}

	err := retryPersist(ctx, cp.cfg, func() error {
		return cp.links.ReplaceAll(ctx, caseID, records)
	})
	if err != nil {
		log.Warn().Err(err).Int("links", len(links)).Msg("Link persistence failed; dumping to emergency dir")
		dumpEmergency(log, cp.cfg.EmergencyDir, fmt.Sprintf("links-%s.json", caseID), links)
		return fmt.Errorf("persist links: %w", err)
	}
	return nil
}

// retryPersist runs fn with exponential backoff. Cancellation aborts between
// attempts.
func retryPersist(ctx context.Context, cfg config.PipelineConfig, fn func() error) error {
	retries := cfg.PersistRetries
	if retries < 1 {
		retries = 1
	}
	backoff := cfg.PersistBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

// dumpEmergency writes a JSON snapshot so failed persistence never loses
// computed work. Best effort; a dump failure is only logged.
func dumpEmergency(log *observability.Logger, dir, name string, v interface{}) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Emergency dir creation failed")
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Emergency snapshot encode failed")
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Emergency snapshot write failed")
		return
	}
	log.Warn().Str("path", path).Msg("Emergency snapshot written")
}
