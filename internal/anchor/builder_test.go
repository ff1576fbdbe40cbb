package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/ocr"
)

func targetPage(number int, text string) ocr.Page {
	return ocr.Page{DocumentID: "trial-record", Number: number, Text: text, Confidence: 0.98}
}

func TestBuild_FirstOccurrenceWins(t *testing.T) {
	m := NewBuilder().Build([]ocr.Page{
		targetPage(5, "This is Exhibit A to the affidavit."),
		targetPage(40, "Exhibit A appears again in the appendix."),
	})

	a, ok := m.Lookup(detect.RefExhibit, "A")
	require.True(t, ok)
	assert.Equal(t, 5, a.Page)
	assert.Equal(t, 1, m.Len())
}

func TestBuild_AnchorsAreExactConfidence(t *testing.T) {
	m := NewBuilder().Build([]ocr.Page{
		targetPage(3, "Tab 7 begins here. Affidavit of Lisa Hatem follows."),
	})

	tab, ok := m.Lookup(detect.RefTab, "7")
	require.True(t, ok)
	assert.Equal(t, 1.0, tab.Confidence)

	aff, ok := m.Lookup(detect.RefAffidavit, "lisa hatem")
	require.True(t, ok)
	assert.Equal(t, 1.0, aff.Confidence)
	assert.Equal(t, 3, aff.Page)
}

func TestBuild_EmptyPagesContributeNothing(t *testing.T) {
	m := NewBuilder().Build([]ocr.Page{
		{DocumentID: "trial-record", Number: 1},
		targetPage(2, "Schedule B is reproduced below."),
	})

	require.Equal(t, 1, m.Len())
	s, ok := m.Lookup(detect.RefSchedule, "B")
	require.True(t, ok)
	assert.Equal(t, 2, s.Page)
}

func TestBuild_LookupMissesUnknownValues(t *testing.T) {
	m := NewBuilder().Build([]ocr.Page{targetPage(1, "Exhibit A only.")})

	_, ok := m.Lookup(detect.RefExhibit, "Z")
	assert.False(t, ok)
	_, ok = m.Lookup(detect.RefTab, "A")
	assert.False(t, ok)
}

func TestByType_PreservesFirstSeenOrder(t *testing.T) {
	m := NewBuilder().Build([]ocr.Page{
		targetPage(2, "Exhibit C comes first here."),
		targetPage(8, "Exhibit A comes later."),
	})

	exhibits := m.ByType(detect.RefExhibit)
	require.Len(t, exhibits, 2)
	assert.Equal(t, "C", exhibits[0].Value)
	assert.Equal(t, "A", exhibits[1].Value)
}
