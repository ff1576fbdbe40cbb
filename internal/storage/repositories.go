package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrNoTargetDocument = errors.New("no target document designated for case")
	ErrDuplicateTarget  = errors.New("case already has a target document")
	ErrLinksNotBuilt    = errors.New("links not built for case")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DocumentRepository handles document CRUD with the source/target partition.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create registers a document. At most one target per case is allowed; a
// second target registration fails with ErrDuplicateTarget.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()

	if doc.Role == RoleTarget {
		if _, err := r.GetTarget(ctx, doc.CaseID); err == nil {
			return ErrDuplicateTarget
		} else if !errors.Is(err, ErrNoTargetDocument) {
			return err
		}
	}

	query := `
		INSERT INTO documents (id, case_id, filename, role, page_count, pdf_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID.String(), doc.CaseID.String(), doc.Filename, string(doc.Role),
		doc.PageCount, doc.PDFPath, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetByID retrieves a document by ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := `
		SELECT id, case_id, filename, role, page_count, pdf_path, created_at, updated_at
		FROM documents WHERE id = $1
	`
	return scanDocument(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetTarget retrieves the designated target document for a case.
func (r *DocumentRepository) GetTarget(ctx context.Context, caseID uuid.UUID) (*Document, error) {
	query := `
		SELECT id, case_id, filename, role, page_count, pdf_path, created_at, updated_at
		FROM documents WHERE case_id = $1 AND role = $2
	`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, caseID.String(), string(RoleTarget)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoTargetDocument
	}
	return doc, err
}

// ListSources lists the source (brief) documents for a case.
func (r *DocumentRepository) ListSources(ctx context.Context, caseID uuid.UUID) ([]*Document, error) {
	query := `
		SELECT id, case_id, filename, role, page_count, pdf_path, created_at, updated_at
		FROM documents WHERE case_id = $1 AND role = $2
		ORDER BY filename
	`
	rows, err := r.db.QueryContext(ctx, query, caseID.String(), string(RoleSource))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdatePageCount records the page count discovered during processing.
func (r *DocumentRepository) UpdatePageCount(ctx context.Context, id uuid.UUID, pages int) error {
	query := `UPDATE documents SET page_count = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, pages, time.Now(), id.String())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// PageRepository handles the append-only OCR page store.
type PageRepository struct {
	db DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db DB) *PageRepository {
	return &PageRepository{db: db}
}

// Upsert writes one page keyed by (documentID, pageNumber). Batch workers
// over disjoint ranges need no further locking because of this keying.
func (r *PageRepository) Upsert(ctx context.Context, page *PageRecord) error {
	page.UpdatedAt = time.Now()
	query := `
		INSERT INTO ocr_pages (document_id, page_number, text, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, page_number)
		DO UPDATE SET text = $3, confidence = $4, updated_at = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		page.DocumentID.String(), page.PageNumber, page.Text, page.Confidence, page.UpdatedAt,
	)
	return err
}

// ListByDocument returns a document's pages in page order.
func (r *PageRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*PageRecord, error) {
	query := `
		SELECT document_id, page_number, text, confidence, updated_at
		FROM ocr_pages WHERE document_id = $1
		ORDER BY page_number
	`
	rows, err := r.db.QueryContext(ctx, query, documentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*PageRecord
	for rows.Next() {
		page := &PageRecord{}
		var docID string
		if err := rows.Scan(&docID, &page.PageNumber, &page.Text, &page.Confidence, &page.UpdatedAt); err != nil {
			return nil, err
		}
		page.DocumentID, _ = uuid.Parse(docID)
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// CountIssues counts pages recorded with empty text or zero confidence,
// surfaced as the aggregate "pages with issues" figure.
func (r *PageRepository) CountIssues(ctx context.Context, documentID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM ocr_pages
		WHERE document_id = $1 AND (text = '' OR confidence = 0)
	`
	var n int
	err := r.db.QueryRowContext(ctx, query, documentID.String()).Scan(&n)
	return n, err
}

// LinkRepository handles the persisted link table.
type LinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// ReplaceAll rewrites a case's full link table in one transaction (the
// initial build and full re-link path).
func (r *LinkRepository) ReplaceAll(ctx context.Context, caseID uuid.UUID, links []*LinkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link rewrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE case_id = $1`, caseID.String()); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}

	insert := `
		INSERT INTO links (id, case_id, ref_type, ref_value, source_doc_id, source_page,
			rect_x, rect_y, rect_w, rect_h, source_text,
			target_doc_id, target_page, target_text, status, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	now := time.Now()
	for _, link := range links {
		if link.ID == uuid.Nil {
			link.ID = uuid.New()
		}
		link.CaseID = caseID
		link.CreatedAt = now
		link.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, insert,
			link.ID.String(), caseID.String(), link.RefType, link.RefValue,
			link.SourceDocID, link.SourcePage,
			link.RectX, link.RectY, link.RectW, link.RectH, link.SourceText,
			link.TargetDocID, link.TargetPage, link.TargetText,
			link.Status, link.Confidence, link.CreatedAt, link.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}

	return tx.Commit()
}

// ListByCase returns all links for a case in reproducible order.
func (r *LinkRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*LinkRecord, error) {
	query := `
		SELECT id, case_id, ref_type, ref_value, source_doc_id, source_page,
			rect_x, rect_y, rect_w, rect_h, source_text,
			target_doc_id, target_page, target_text, status, confidence, created_at, updated_at
		FROM links WHERE case_id = $1
		ORDER BY source_doc_id, source_page, ref_type, ref_value
	`
	rows, err := r.db.QueryContext(ctx, query, caseID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*LinkRecord
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// UpdateDestination rewrites the destination page of the rows matching
// (refType, refValue) for the case. This is the single-row override path:
// every other row is untouched. Returns ErrLinksNotBuilt when the case has
// no link table at all, ErrNotFound when the identifier matches nothing.
func (r *LinkRepository) UpdateDestination(ctx context.Context, caseID uuid.UUID, refType, refValue string, newPage int) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM links WHERE case_id = $1`, caseID.String(),
	).Scan(&total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrLinksNotBuilt
	}

	query := `
		UPDATE links SET target_page = $1, updated_at = $2
		WHERE case_id = $3 AND ref_type = $4 AND ref_value = $5
	`
	result, err := r.db.ExecContext(ctx, query, newPage, time.Now(), caseID.String(), refType, refValue)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return int(n), nil
}

// UpdateStatus transitions one link's review status.
func (r *LinkRepository) UpdateStatus(ctx context.Context, linkID uuid.UUID, status string) error {
	query := `UPDATE links SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), linkID.String())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CountByStatus returns link counts grouped by review status.
func (r *LinkRepository) CountByStatus(ctx context.Context, caseID uuid.UUID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM links WHERE case_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, caseID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// scanners

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row *sql.Row) (*Document, error) {
	doc, err := scanDocumentFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func scanDocumentRows(rows *sql.Rows) (*Document, error) {
	return scanDocumentFrom(rows)
}

func scanDocumentFrom(s rowScanner) (*Document, error) {
	doc := &Document{}
	var id, caseID, role string
	if err := s.Scan(&id, &caseID, &doc.Filename, &role, &doc.PageCount, &doc.PDFPath, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.ID, _ = uuid.Parse(id)
	doc.CaseID, _ = uuid.Parse(caseID)
	doc.Role = DocumentRole(role)
	return doc, nil
}

func scanLink(s rowScanner) (*LinkRecord, error) {
	link := &LinkRecord{}
	var id, caseID string
	if err := s.Scan(&id, &caseID, &link.RefType, &link.RefValue, &link.SourceDocID, &link.SourcePage,
		&link.RectX, &link.RectY, &link.RectW, &link.RectH, &link.SourceText,
		&link.TargetDocID, &link.TargetPage, &link.TargetText, &link.Status, &link.Confidence,
		&link.CreatedAt, &link.UpdatedAt); err != nil {
		return nil, err
	}
	link.ID, _ = uuid.Parse(id)
	link.CaseID, _ = uuid.Parse(caseID)
	return link, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
