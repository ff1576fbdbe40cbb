package review

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/pdfmark"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/storage"
)

type recordingMutator struct {
	inserted map[string][]int // "doc:page" -> target pages
}

func (m *recordingMutator) key(docID string, page int) string {
	return fmt.Sprintf("%s:%d", docID, page)
}

func (m *recordingMutator) ClearLinks(_ context.Context, docID string, page int) error {
	m.inserted[m.key(docID, page)] = nil
	return nil
}

func (m *recordingMutator) InsertLink(_ context.Context, docID string, page int, _ detect.Rect, _ string, targetPage int) error {
	k := m.key(docID, page)
	m.inserted[k] = append(m.inserted[k], targetPage)
	return nil
}

func (m *recordingMutator) Save(context.Context, string) error { return nil }

func setupService(t *testing.T) (*Service, *storage.LinkRepository, *recordingMutator, uuid.UUID) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(context.Background(), db))

	links := storage.NewLinkRepository(db)
	mut := &recordingMutator{inserted: make(map[string][]int)}
	svc := NewService(observability.Nop(), links, pdfmark.NewMaterializer(observability.Nop(), mut))

	caseID := uuid.New()
	require.NoError(t, links.ReplaceAll(context.Background(), caseID, []*storage.LinkRecord{
		{RefType: "tab", RefValue: "3", SourceDocID: "brief-1", SourcePage: 9, TargetDocID: "trial-record", TargetPage: 41, Status: "pending", Confidence: 1.0},
		{RefType: "exhibit", RefValue: "A", SourceDocID: "brief-1", SourcePage: 4, TargetDocID: "trial-record", TargetPage: 17, Status: "pending", Confidence: 1.0},
		{RefType: "tab", RefValue: "5", SourceDocID: "brief-2", SourcePage: 2, TargetDocID: "trial-record", TargetPage: 77, Status: "pending", Confidence: 1.0},
	}))

	return svc, links, mut, caseID
}

func intPtr(n int) *int { return &n }

func TestOverride_ByTabNumber_ChangesOnlyThatRow(t *testing.T) {
	svc, links, _, caseID := setupService(t)

	res, err := svc.Override(context.Background(), caseID, OverrideRequest{
		TabNumber: intPtr(3),
		NewPage:   50,
	})
	require.NoError(t, err)
	assert.Equal(t, "tab", res.RefType)
	assert.Equal(t, "3", res.RefValue)
	assert.Equal(t, 1, res.RowsChanged)
	assert.True(t, res.Materialized)

	all, err := links.ListByCase(context.Background(), caseID)
	require.NoError(t, err)
	for _, l := range all {
		switch {
		case l.RefType == "tab" && l.RefValue == "3":
			assert.Equal(t, 50, l.TargetPage)
		case l.RefType == "exhibit" && l.RefValue == "A":
			assert.Equal(t, 17, l.TargetPage)
		case l.RefType == "tab" && l.RefValue == "5":
			assert.Equal(t, 77, l.TargetPage)
		}
	}
}

func TestOverride_RedrawsOnlyAffectedPages(t *testing.T) {
	svc, _, mut, caseID := setupService(t)

	_, err := svc.Override(context.Background(), caseID, OverrideRequest{
		RefType: "tab", RefValue: "3", NewPage: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{50}, mut.inserted["brief-1:9"])
	_, exhibitPageTouched := mut.inserted["brief-1:4"]
	assert.False(t, exhibitPageTouched)
	_, otherBriefTouched := mut.inserted["brief-2:2"]
	assert.False(t, otherBriefTouched)
}

func TestOverride_ByTypeValue(t *testing.T) {
	svc, links, _, caseID := setupService(t)

	res, err := svc.Override(context.Background(), caseID, OverrideRequest{
		RefType: "exhibit", RefValue: "A", NewPage: 99,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsChanged)

	all, err := links.ListByCase(context.Background(), caseID)
	require.NoError(t, err)
	for _, l := range all {
		if l.RefType == "exhibit" {
			assert.Equal(t, 99, l.TargetPage)
		}
	}
}

func TestOverride_Validation(t *testing.T) {
	svc, _, _, caseID := setupService(t)
	ctx := context.Background()

	_, err := svc.Override(ctx, caseID, OverrideRequest{NewPage: 10})
	assert.ErrorIs(t, err, ErrBadIdentifier)

	_, err = svc.Override(ctx, caseID, OverrideRequest{TabNumber: intPtr(0), NewPage: 10})
	assert.ErrorIs(t, err, ErrBadIdentifier)

	_, err = svc.Override(ctx, caseID, OverrideRequest{TabNumber: intPtr(3), NewPage: 0})
	assert.ErrorIs(t, err, ErrBadPage)
}

func TestOverride_UnknownIdentifier(t *testing.T) {
	svc, _, _, caseID := setupService(t)

	_, err := svc.Override(context.Background(), caseID, OverrideRequest{
		TabNumber: intPtr(42), NewPage: 10,
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOverride_LinksNotBuilt(t *testing.T) {
	svc, _, _, _ := setupService(t)

	_, err := svc.Override(context.Background(), uuid.New(), OverrideRequest{
		TabNumber: intPtr(3), NewPage: 10,
	})
	assert.ErrorIs(t, err, storage.ErrLinksNotBuilt)
}

func TestApproveAndReject(t *testing.T) {
	svc, links, _, caseID := setupService(t)
	ctx := context.Background()

	all, err := links.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, all[0].ID))
	require.NoError(t, svc.Reject(ctx, all[1].ID))

	counts, err := links.CountByStatus(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["approved"])
	assert.Equal(t, 1, counts["rejected"])
	assert.Equal(t, 1, counts["pending"])
}
