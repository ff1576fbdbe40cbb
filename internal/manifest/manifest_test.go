package manifest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/linker"
)

func sampleResult() *linker.Result {
	return &linker.Result{
		Links: []linker.Link{
			{
				Type: detect.RefExhibit, Value: "A",
				SourceDocID: "brief-1", SourcePage: 4, SourceText: "Exhibit A",
				TargetDocID: "trial-record", TargetPage: 17,
				Status: linker.StatusPending, Confidence: 1.0,
			},
			{
				Type: detect.RefTab, Value: "3",
				SourceDocID: "brief-1", SourcePage: 9, SourceText: "Tab 3",
				TargetDocID: "trial-record", TargetPage: 41,
				Status: linker.StatusPending, Confidence: 1.0,
			},
		},
		Dropped: []detect.Reference{
			{Type: detect.RefExhibit, Value: "Q", Text: "Exhibit Q", SourceDocumentID: "brief-1", SourcePage: 2, Confidence: 0.97},
		},
		Total:         3,
		LinkedCount:   2,
		DroppedCount:  1,
		NeedsReview:   0,
		ByType:        map[string]int{"exhibit": 2, "tab": 1},
		MinConfidence: 0.92,
		Seed:          42,
		Hash:          "abcdef0123456789",
	}
}

func TestBuild_CopiesRunSummary(t *testing.T) {
	m := Build("case-1", sampleResult(), "https://example.com/out.pdf")

	assert.Equal(t, "case-1", m.CaseID)
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 2, m.Links)
	assert.Equal(t, 1, m.Dropped)
	assert.Equal(t, "abcdef0123456789", m.DeterministicHash)
	assert.Equal(t, int64(42), m.Seed)
	assert.Equal(t, "https://example.com/out.pdf", m.PDFURL)
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build("case-1", sampleResult(), "").WriteJSON(&buf))

	var decoded Manifest
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "case-1", decoded.CaseID)
	assert.Equal(t, map[string]int{"exhibit": 2, "tab": 1}, decoded.ByType)
}

func TestRows_LinkedThenDropped(t *testing.T) {
	rows := Rows(sampleResult())
	require.Len(t, rows, 3)

	assert.Equal(t, "pending", rows[0].Status)
	assert.Equal(t, 17, rows[0].DestPage)
	assert.Equal(t, "pending", rows[1].Status)

	assert.Equal(t, "dropped", rows[2].Status)
	assert.Equal(t, "Q", rows[2].RefValue)
	assert.Zero(t, rows[2].DestPage)
}

func TestCSV_RoundTrips(t *testing.T) {
	rows := Rows(sampleResult())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)
}

func TestReadCSV_RejectsForeignHeader(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}

func TestReadCSV_RejectsEmptyInput(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString(""))
	assert.Error(t, err)
}
