package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ocr")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestRecognizePage_ParsesProcessOutput(t *testing.T) {
	stub := writeStub(t, `echo '{"text":"This is Exhibit A.","confidence":0.88}'`)
	e := NewExecEngine(observability.Nop(), ExecConfig{BinaryPath: stub})

	page, err := e.RecognizePage(context.Background(), "doc-1", "/data/brief.pdf", 4)
	require.NoError(t, err)

	assert.Equal(t, "doc-1", page.DocumentID)
	assert.Equal(t, 4, page.Number)
	assert.Equal(t, "This is Exhibit A.", page.Text)
	assert.InDelta(t, 0.88, page.Confidence, 0.0001)
	assert.False(t, page.Empty())
}

func TestRecognizePage_ForwardsWordConfidenceFloor(t *testing.T) {
	stub := writeStub(t, `echo "{\"text\":\"floor=$3\",\"confidence\":0.9}"`)
	e := NewExecEngine(observability.Nop(), ExecConfig{BinaryPath: stub, MinWordConfidence: 0.72})

	page, err := e.RecognizePage(context.Background(), "doc-1", "/data/brief.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, "floor=0.72", page.Text)
}

func TestRecognizePage_Timeout(t *testing.T) {
	stub := writeStub(t, "sleep 5")
	e := NewExecEngine(observability.Nop(), ExecConfig{BinaryPath: stub, PageTimeout: 50 * time.Millisecond})

	_, err := e.RecognizePage(context.Background(), "doc-1", "/data/brief.pdf", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRecognizePage_ProcessFailure(t *testing.T) {
	stub := writeStub(t, "echo 'corrupt page' >&2; exit 3")
	e := NewExecEngine(observability.Nop(), ExecConfig{BinaryPath: stub})

	_, err := e.RecognizePage(context.Background(), "doc-1", "/data/brief.pdf", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt page")
}

func TestRecognizePage_MalformedOutput(t *testing.T) {
	stub := writeStub(t, "echo not-json")
	e := NewExecEngine(observability.Nop(), ExecConfig{BinaryPath: stub})

	_, err := e.RecognizePage(context.Background(), "doc-1", "/data/brief.pdf", 1)
	assert.Error(t, err)
}

func TestFailedPage_IsEmpty(t *testing.T) {
	page := FailedPage("doc-1", 7)
	assert.True(t, page.Empty())
	assert.Equal(t, 7, page.Number)
}
