package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/anchor"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/ocr"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/oracle"
)

var testTarget = Target{DocID: "trial-record", PageCount: 200}

func anchorsFrom(pages ...ocr.Page) *anchor.Map {
	return anchor.NewBuilder().Build(pages)
}

func ref(t detect.RefType, value string, page int) detect.Reference {
	return detect.Reference{
		Type:             t,
		Value:            value,
		Text:             value,
		SourcePage:       page,
		SourceDocumentID: "brief-1",
		Confidence:       0.97,
	}
}

func newTestLinker(cfg Config) *Linker {
	return NewLinker(observability.Nop(), cfg)
}

func TestLink_ExactAnchorAboveThreshold(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{Number: 17, Text: "This is Exhibit A.", Confidence: 0.98})
	l := newTestLinker(Config{})

	res := l.Link(context.Background(), []detect.Reference{ref(detect.RefExhibit, "A", 4)}, anchors, testTarget)

	require.Len(t, res.Links, 1)
	link := res.Links[0]
	assert.Equal(t, 17, link.TargetPage)
	assert.Equal(t, "trial-record", link.TargetDocID)
	assert.Equal(t, StatusPending, link.Status)
	assert.Equal(t, 1.0, link.Confidence)
	assert.Equal(t, 1, res.LinkedCount)
	assert.Zero(t, res.DroppedCount)
}

func TestLink_NoAnchorMeansDropped(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{Number: 17, Text: "This is Exhibit A.", Confidence: 0.98})
	l := newTestLinker(Config{})

	res := l.Link(context.Background(), []detect.Reference{ref(detect.RefExhibit, "Q", 4)}, anchors, testTarget)

	assert.Empty(t, res.Links)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "Q", res.Dropped[0].Value)
	assert.Zero(t, res.NeedsReview)
}

func TestLink_NilAnchorMapFailsClosed(t *testing.T) {
	l := newTestLinker(Config{})

	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefExhibit, "A", 1),
		ref(detect.RefTab, "3", 2),
	}, nil, testTarget)

	assert.Empty(t, res.Links)
	assert.Equal(t, 2, res.DroppedCount)
}

func TestLink_DeterministicAcrossInputOrder(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{
		Number:     9,
		Text:       "Exhibit A and Tab 3 and Schedule B all start here.",
		Confidence: 0.98,
	})
	refs := []detect.Reference{
		ref(detect.RefSchedule, "B", 8),
		ref(detect.RefExhibit, "A", 2),
		ref(detect.RefTab, "3", 5),
	}
	shuffled := []detect.Reference{refs[2], refs[0], refs[1]}

	l := newTestLinker(Config{})
	first := l.Link(context.Background(), refs, anchors, testTarget)
	second := l.Link(context.Background(), shuffled, anchors, testTarget)

	assert.Equal(t, first.Links, second.Links)
	assert.Equal(t, first.Hash, second.Hash)
	assert.NotEmpty(t, first.Hash)
}

func TestLink_TrialRecordCiteLinksDirectly(t *testing.T) {
	l := newTestLinker(Config{})

	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefTrialRecordCite, "45", 3),
	}, nil, testTarget)

	require.Len(t, res.Links, 1)
	assert.Equal(t, 45, res.Links[0].TargetPage)
}

func TestLink_TrialRecordCiteBeyondTargetIsDropped(t *testing.T) {
	l := newTestLinker(Config{})

	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefTrialRecordCite, "999", 3),
	}, nil, testTarget)

	assert.Empty(t, res.Links)
	assert.Equal(t, 1, res.DroppedCount)
}

func TestLink_FuzzyAffidavitMatch(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{
		Number:     33,
		Text:       "Affidavit of Rino Ferrante sworn in these proceedings.",
		Confidence: 0.98,
	})
	l := newTestLinker(Config{FuzzyAffidavit: true})

	// "mr" is too short to be a token; the remaining tokens overlap fully.
	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefAffidavit, "mr rino ferrante", 6),
	}, anchors, testTarget)

	require.Len(t, res.Links, 1)
	assert.Equal(t, 33, res.Links[0].TargetPage)
	assert.Equal(t, 1.0, res.Links[0].Confidence)
}

func TestLink_FuzzyAffidavitBelowThresholdIsDropped(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{
		Number:     33,
		Text:       "Affidavit of Rino Ferrante sworn in these proceedings.",
		Confidence: 0.98,
	})
	l := newTestLinker(Config{FuzzyAffidavit: true})

	// One of two tokens shared: 0.5, well under the threshold.
	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefAffidavit, "rino rossi", 6),
	}, anchors, testTarget)

	assert.Empty(t, res.Links)
	assert.Equal(t, 1, res.DroppedCount)
	assert.Equal(t, 1, res.NeedsReview)
}

func TestLink_FuzzyDisabledDropsInexactAffidavit(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{
		Number:     33,
		Text:       "Affidavit of Rino Ferrante sworn in these proceedings.",
		Confidence: 0.98,
	})
	l := newTestLinker(Config{FuzzyAffidavit: false})

	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefAffidavit, "mr rino ferrante", 6),
	}, anchors, testTarget)

	assert.Empty(t, res.Links)
}

type pickFirstOracle struct{}

func (pickFirstOracle) Resolve(_ context.Context, _ detect.Reference, candidates []oracle.Candidate, _ float64, _ int64) (oracle.Decision, error) {
	if len(candidates) == 0 {
		return oracle.Decision{}, nil
	}
	return oracle.Decision{Pick: true, Page: candidates[0].Page, Reason: "test"}, nil
}

func TestLink_OracleResolvesSubThresholdCandidate(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{
		Number:     33,
		Text:       "Affidavit of Rino Ferrante sworn in these proceedings.",
		Confidence: 0.98,
	})
	l := newTestLinker(Config{FuzzyAffidavit: true, Oracle: pickFirstOracle{}})

	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefAffidavit, "rino rossi", 6),
	}, anchors, testTarget)

	require.Len(t, res.Links, 1)
	assert.Equal(t, 33, res.Links[0].TargetPage)
	assert.InDelta(t, 0.5, res.Links[0].Confidence, 0.0001)
}

func TestLink_CountsByType(t *testing.T) {
	anchors := anchorsFrom(ocr.Page{Number: 9, Text: "Exhibit A begins here.", Confidence: 0.98})
	l := newTestLinker(Config{})

	res := l.Link(context.Background(), []detect.Reference{
		ref(detect.RefExhibit, "A", 1),
		ref(detect.RefExhibit, "B", 2),
		ref(detect.RefTab, "3", 3),
	}, anchors, testTarget)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.ByType["exhibit"])
	assert.Equal(t, 1, res.ByType["tab"])
	assert.Equal(t, 1, res.LinkedCount)
	assert.Equal(t, 2, res.DroppedCount)
}
