package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// The in-memory database lives on a single connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func newDoc(caseID uuid.UUID, filename string, role DocumentRole, pages int) *Document {
	return &Document{
		CaseID:    caseID,
		Filename:  filename,
		Role:      role,
		PageCount: pages,
		PDFPath:   "/data/" + filename,
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	doc := newDoc(caseID, "brief.pdf", RoleSource, 40)
	require.NoError(t, repo.Create(ctx, doc))
	require.NotEqual(t, uuid.Nil, doc.ID)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "brief.pdf", got.Filename)
	assert.Equal(t, RoleSource, got.Role)
	assert.Equal(t, 40, got.PageCount)
}

func TestDocumentRepository_GetByID_NotFound(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentRepository_SingleTargetPerCase(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, repo.Create(ctx, newDoc(caseID, "trial-record.pdf", RoleTarget, 200)))

	err := repo.Create(ctx, newDoc(caseID, "second-record.pdf", RoleTarget, 100))
	assert.ErrorIs(t, err, ErrDuplicateTarget)

	// A different case can still register its own target.
	require.NoError(t, repo.Create(ctx, newDoc(uuid.New(), "other-record.pdf", RoleTarget, 50)))
}

func TestDocumentRepository_GetTarget(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	_, err := repo.GetTarget(ctx, caseID)
	assert.ErrorIs(t, err, ErrNoTargetDocument)

	require.NoError(t, repo.Create(ctx, newDoc(caseID, "trial-record.pdf", RoleTarget, 200)))

	target, err := repo.GetTarget(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, "trial-record.pdf", target.Filename)
}

func TestDocumentRepository_ListSources(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, repo.Create(ctx, newDoc(caseID, "b-brief.pdf", RoleSource, 10)))
	require.NoError(t, repo.Create(ctx, newDoc(caseID, "a-brief.pdf", RoleSource, 10)))
	require.NoError(t, repo.Create(ctx, newDoc(caseID, "trial-record.pdf", RoleTarget, 200)))

	sources, err := repo.ListSources(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "a-brief.pdf", sources[0].Filename)
	assert.Equal(t, "b-brief.pdf", sources[1].Filename)
}

func TestPageRepository_UpsertIsIdempotentPerPage(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepository(db)
	ctx := context.Background()
	docID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &PageRecord{DocumentID: docID, PageNumber: 1, Text: "first pass", Confidence: 0.7}))
	require.NoError(t, repo.Upsert(ctx, &PageRecord{DocumentID: docID, PageNumber: 1, Text: "second pass", Confidence: 0.9}))
	require.NoError(t, repo.Upsert(ctx, &PageRecord{DocumentID: docID, PageNumber: 2, Text: "page two", Confidence: 0.8}))

	pages, err := repo.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "second pass", pages[0].Text)
	assert.InDelta(t, 0.9, pages[0].Confidence, 0.0001)
	assert.Equal(t, 2, pages[1].PageNumber)
}

func TestPageRepository_CountIssues(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepository(db)
	ctx := context.Background()
	docID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &PageRecord{DocumentID: docID, PageNumber: 1, Text: "good", Confidence: 0.9}))
	require.NoError(t, repo.Upsert(ctx, &PageRecord{DocumentID: docID, PageNumber: 2, Text: "", Confidence: 0}))
	require.NoError(t, repo.Upsert(ctx, &PageRecord{DocumentID: docID, PageNumber: 3, Text: "text", Confidence: 0}))

	n, err := repo.CountIssues(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func linkRecord(refType, refValue, sourceDoc string, sourcePage, targetPage int) *LinkRecord {
	return &LinkRecord{
		RefType:     refType,
		RefValue:    refValue,
		SourceDocID: sourceDoc,
		SourcePage:  sourcePage,
		TargetDocID: "trial-record",
		TargetPage:  targetPage,
		Status:      "pending",
		Confidence:  1.0,
	}
}

func TestLinkRepository_ReplaceAllAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewLinkRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, repo.ReplaceAll(ctx, caseID, []*LinkRecord{
		linkRecord("tab", "3", "brief-1", 9, 41),
		linkRecord("exhibit", "A", "brief-1", 4, 17),
	}))

	links, err := repo.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	// Reproducible order: source doc, page, type, value.
	assert.Equal(t, "exhibit", links[0].RefType)
	assert.Equal(t, "tab", links[1].RefType)

	// A second run replaces, never appends.
	require.NoError(t, repo.ReplaceAll(ctx, caseID, []*LinkRecord{
		linkRecord("exhibit", "A", "brief-1", 4, 17),
	}))
	links, err = repo.ListByCase(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestLinkRepository_UpdateDestination(t *testing.T) {
	db := newTestDB(t)
	repo := NewLinkRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	_, err := repo.UpdateDestination(ctx, caseID, "tab", "3", 50)
	assert.ErrorIs(t, err, ErrLinksNotBuilt)

	require.NoError(t, repo.ReplaceAll(ctx, caseID, []*LinkRecord{
		linkRecord("tab", "3", "brief-1", 9, 41),
		linkRecord("exhibit", "A", "brief-1", 4, 17),
	}))

	n, err := repo.UpdateDestination(ctx, caseID, "tab", "3", 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Only the named row moved.
	links, err := repo.ListByCase(ctx, caseID)
	require.NoError(t, err)
	for _, l := range links {
		switch l.RefType {
		case "tab":
			assert.Equal(t, 50, l.TargetPage)
		case "exhibit":
			assert.Equal(t, 17, l.TargetPage)
		}
	}

	_, err = repo.UpdateDestination(ctx, caseID, "tab", "99", 50)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkRepository_StatusTransitions(t *testing.T) {
	db := newTestDB(t)
	repo := NewLinkRepository(db)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, repo.ReplaceAll(ctx, caseID, []*LinkRecord{
		linkRecord("exhibit", "A", "brief-1", 4, 17),
		linkRecord("tab", "3", "brief-1", 9, 41),
	}))

	links, err := repo.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, links[0].ID, "approved"))

	counts, err := repo.CountByStatus(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["approved"])
	assert.Equal(t, 1, counts["pending"])

	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), "approved"), ErrNotFound)
}
