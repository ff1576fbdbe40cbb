// Package ocr defines the boundary to the external OCR engine.
//
// The engine itself (rasterization, Tesseract invocation, confidence scoring)
// is a black box. This package owns only the page contract every downstream
// component consumes: one (documentID, pageNumber, text, confidence) tuple
// per page, pages in non-decreasing page order, failed pages represented as
// empty text with zero confidence.
package ocr

import "context"

// Page is the atomic unit of OCR output.
type Page struct {
	DocumentID string  `json:"documentId"`
	Number     int     `json:"pageNumber"` // 1-based
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// Empty reports whether the page carries no usable text.
func (p Page) Empty() bool {
	return p.Text == "" || p.Confidence == 0
}

// Engine recognizes a single page of a document.
//
// Implementations must not return an error for an unreadable page; that is
// an expected partial failure, reported as an empty Page. Errors are reserved
// for invocation problems (binary missing, timeout, malformed output).
type Engine interface {
	RecognizePage(ctx context.Context, documentID, pdfPath string, pageNumber int) (Page, error)
}

// FailedPage returns the zero-confidence placeholder recorded for a page
// whose recognition failed. Processing continues past it.
func FailedPage(documentID string, pageNumber int) Page {
	return Page{DocumentID: documentID, Number: pageNumber}
}
