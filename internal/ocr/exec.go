package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
)

// ExecEngine invokes an external page-OCR process per page.
//
// The process contract: argv is (pdfPath, pageNumber, minWordConfidence), a
// single JSON object is written to stdout with at least {"text": string,
// "confidence": float}. The process drops recognized words below the
// confidence floor before assembling the page text. A page the process could
// not read comes back with empty text and zero confidence, which is passed
// through unchanged.
type ExecEngine struct {
	logger      *observability.Logger
	binaryPath  string
	pageTimeout time.Duration
	minWordConf float64
}

// ExecConfig holds external OCR process settings.
type ExecConfig struct {
	BinaryPath        string
	PageTimeout       time.Duration
	MinWordConfidence float64
}

// NewExecEngine creates an engine backed by an external OCR process.
func NewExecEngine(logger *observability.Logger, cfg ExecConfig) *ExecEngine {
	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	minWordConf := cfg.MinWordConfidence
	if minWordConf < 0 {
		minWordConf = 0
	}
	return &ExecEngine{
		logger:      logger,
		binaryPath:  cfg.BinaryPath,
		pageTimeout: timeout,
		minWordConf: minWordConf,
	}
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RecognizePage runs the OCR process for one page, time-boxed so a single
// bad page cannot hang the whole document.
func (e *ExecEngine) RecognizePage(ctx context.Context, documentID, pdfPath string, pageNumber int) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binaryPath, pdfPath, strconv.Itoa(pageNumber),
		strconv.FormatFloat(e.minWordConf, 'f', 2, 64))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Page{}, fmt.Errorf("ocr page %d timed out after %s", pageNumber, e.pageTimeout)
		}
		return Page{}, fmt.Errorf("ocr process failed for page %d: %w (stderr: %s)", pageNumber, err, stderr.String())
	}

	var res execResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return Page{}, fmt.Errorf("parse ocr output for page %d: %w", pageNumber, err)
	}

	e.logger.Debug().
		Str("document_id", documentID).
		Int("page", pageNumber).
		Float64("confidence", res.Confidence).
		Dur("elapsed", time.Since(start)).
		Msg("OCR page complete")

	return Page{
		DocumentID: documentID,
		Number:     pageNumber,
		Text:       res.Text,
		Confidence: res.Confidence,
	}, nil
}
