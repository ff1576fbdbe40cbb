// Package manifest renders the per-case linking summary consumed by the
// review UI and by auditors comparing runs.
package manifest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/linker"
)

// Manifest is the machine-readable result of one linking run. The hash and
// seed together let two runs over the same inputs be compared byte for byte.
type Manifest struct {
	CaseID            string         `json:"caseId"`
	Total             int            `json:"total"`
	Links             int            `json:"links"`
	Dropped           int            `json:"dropped"`
	NeedsReview       int            `json:"needsReview"`
	ByType            map[string]int `json:"byType"`
	PDFURL            string         `json:"pdfUrl,omitempty"`
	MinConfidence     float64        `json:"minConfidence"`
	Seed              int64          `json:"seed"`
	DeterministicHash string         `json:"deterministicHash"`
}

// Build derives a manifest from a linking result.
func Build(caseID string, res *linker.Result, pdfURL string) *Manifest {
	return &Manifest{
		CaseID:            caseID,
		Total:             res.Total,
		Links:             res.LinkedCount,
		Dropped:           res.DroppedCount,
		NeedsReview:       res.NeedsReview,
		ByType:            res.ByType,
		PDFURL:            pdfURL,
		MinConfidence:     res.MinConfidence,
		Seed:              res.Seed,
		DeterministicHash: res.Hash,
	}
}

// WriteJSON writes the manifest as indented JSON.
func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// csvHeader is the candidate-map column layout. Dropped references appear
// with an empty destination page so reviewers can see what did not link and
// why.
var csvHeader = []string{
	"source_doc", "source_page", "ref_type", "ref_value",
	"source_text", "dest_page", "confidence", "status",
}

// Row is one CSV line of the candidate map.
type Row struct {
	SourceDoc  string
	SourcePage int
	RefType    string
	RefValue   string
	SourceText string
	DestPage   int // 0 means dropped
	Confidence float64
	Status     string
}

// Rows flattens a linking result into candidate-map rows, linked first then
// dropped, each block in the linker's stable order.
func Rows(res *linker.Result) []Row {
	rows := make([]Row, 0, len(res.Links)+len(res.Dropped))
	for _, l := range res.Links {
		rows = append(rows, Row{
			SourceDoc:  l.SourceDocID,
			SourcePage: l.SourcePage,
			RefType:    string(l.Type),
			RefValue:   l.Value,
			SourceText: l.SourceText,
			DestPage:   l.TargetPage,
			Confidence: l.Confidence,
			Status:     string(l.Status),
		})
	}
	dropped := make([]detect.Reference, len(res.Dropped))
	copy(dropped, res.Dropped)
	sort.SliceStable(dropped, func(i, j int) bool {
		a, b := dropped[i], dropped[j]
		if a.SourceDocumentID != b.SourceDocumentID {
			return a.SourceDocumentID < b.SourceDocumentID
		}
		if a.SourcePage != b.SourcePage {
			return a.SourcePage < b.SourcePage
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Value < b.Value
	})
	for _, d := range dropped {
		rows = append(rows, Row{
			SourceDoc:  d.SourceDocumentID,
			SourcePage: d.SourcePage,
			RefType:    string(d.Type),
			RefValue:   d.Value,
			SourceText: d.Text,
			DestPage:   0,
			Confidence: d.Confidence,
			Status:     "dropped",
		})
	}
	return rows
}

// WriteCSV writes the candidate map.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		dest := ""
		if r.DestPage > 0 {
			dest = strconv.Itoa(r.DestPage)
		}
		record := []string{
			r.SourceDoc,
			strconv.Itoa(r.SourcePage),
			r.RefType,
			r.RefValue,
			r.SourceText,
			dest,
			strconv.FormatFloat(r.Confidence, 'f', 4, 64),
			r.Status,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a candidate map written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty candidate map")
	}
	if len(records[0]) != len(csvHeader) {
		return nil, fmt.Errorf("unexpected candidate map header: %v", records[0])
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		sourcePage, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad source page %q", i+1, rec[1])
		}
		destPage := 0
		if rec[5] != "" {
			destPage, err = strconv.Atoi(rec[5])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad dest page %q", i+1, rec[5])
			}
		}
		conf, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad confidence %q", i+1, rec[6])
		}
		rows = append(rows, Row{
			SourceDoc:  rec[0],
			SourcePage: sourcePage,
			RefType:    rec[2],
			RefValue:   rec[3],
			SourceText: rec[4],
			DestPage:   destPage,
			Confidence: conf,
			Status:     rec[7],
		})
	}
	return rows, nil
}
