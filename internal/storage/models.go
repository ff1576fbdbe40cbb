// Package storage provides database models and repositories for the
// hyperlinking engine.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// DocumentRole partitions documents into link sources and the single link
// target. The partition is enforced at classification time: a case has
// exactly one target (the trial record), everything else is a source brief.
type DocumentRole string

const (
	RoleSource DocumentRole = "source"
	RoleTarget DocumentRole = "target"
)

// Document is one uploaded PDF within a case.
type Document struct {
	ID        uuid.UUID
	CaseID    uuid.UUID
	Filename  string
	Role      DocumentRole
	PageCount int
	PDFPath   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PageRecord is one OCR'd page, the append-only unit of the page store.
// Failed pages are stored with empty text and zero confidence.
type PageRecord struct {
	DocumentID uuid.UUID
	PageNumber int
	Text       string
	Confidence float64
	UpdatedAt  time.Time
}

// LinkRecord is one persisted hyperlink row, sufficient to reconstruct a
// linker.Link and to redraw its PDF annotation.
type LinkRecord struct {
	ID          uuid.UUID
	CaseID      uuid.UUID
	RefType     string
	RefValue    string
	SourceDocID string
	SourcePage  int
	RectX       float64
	RectY       float64
	RectW       float64
	RectH       float64
	SourceText  string
	TargetDocID string
	TargetPage  int
	TargetText  string
	Status      string
	Confidence  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
