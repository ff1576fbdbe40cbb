package detect

import (
	"regexp"
	"strings"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/ocr"
)

// taxonomyPattern is one row of the detection table. Patterns are strict,
// word-bounded, and value-required, except the section types which match on
// keyword presence alone and resolve to the constant value "section".
type taxonomyPattern struct {
	refType   RefType
	rx        *regexp.Regexp
	valueless bool
}

// taxonomy is evaluated in this fixed order on every page so detection
// output order never depends on map iteration.
var taxonomy = []taxonomyPattern{
	{refType: RefExhibit, rx: regexp.MustCompile(`(?i)\bExhibit\s+([A-Z]{1,3}(?:-\d+)?|\d+)\b`)},
	{refType: RefTab, rx: regexp.MustCompile(`(?i)\bTab\s+(\d{1,3})\b`)},
	{refType: RefSchedule, rx: regexp.MustCompile(`(?i)\bSchedule\s+([A-Z0-9]{1,3})\b`)},
	{refType: RefAffidavit, rx: regexp.MustCompile(`(?i:\bAffidavit\s+of\s+)([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)+)`)},
	{refType: RefUndertaking, rx: regexp.MustCompile(`(?i)\bundertaking(s)?\b`), valueless: true},
	{refType: RefRefusal, rx: regexp.MustCompile(`(?i)\brefusal(s)?\b`), valueless: true},
	{refType: RefUnderAdvisement, rx: regexp.MustCompile(`(?i)\bunder advisement\b`), valueless: true},
	{refType: RefTrialRecordCite, rx: regexp.MustCompile(`(?i)\b(?:TR|Trial\s+Record)\s*(?:p\.|pp\.|page|pages)?\s*(\d{1,4})\b`)},
}

// juratRx marks signature/notary boilerplate. A match within the exclusion
// radius of any of these phrases is a boilerplate repeat, not a true citation.
var juratRx = regexp.MustCompile(`(?i)sworn before|notary public|subscribed and sworn|commissioner for taking affidavits`)

// trailingDateRx strips an optional date clause off affidavit names.
var trailingDateRx = regexp.MustCompile(`(?i),?\s+dated\s+[A-Za-z]+\s+\d{1,2},?\s+\d{4}$`)

// Detector finds taxonomy references in body pages.
type Detector struct {
	signatureRadius int
	snippetRadius   int
}

// Config holds detector settings.
type Config struct {
	SignatureRadius int // runes around jurat terms to exclude
	SnippetRadius   int // context captured around each match
}

// NewDetector creates a reference detector.
func NewDetector(cfg Config) *Detector {
	if cfg.SignatureRadius <= 0 {
		cfg.SignatureRadius = 200
	}
	if cfg.SnippetRadius <= 0 {
		cfg.SnippetRadius = 60
	}
	return &Detector{
		signatureRadius: cfg.SignatureRadius,
		snippetRadius:   cfg.SnippetRadius,
	}
}

// Detect scans the pages of one source document and returns every raw
// candidate reference, one per occurrence, duplicates included. Dedup and
// the one-anchor-per-value rule belong to the linker, not here.
func (d *Detector) Detect(pages []ocr.Page, sourceDocID string) []Reference {
	var refs []Reference
	for _, page := range pages {
		if page.Empty() {
			continue
		}
		refs = append(refs, d.detectPage(page, sourceDocID)...)
	}
	return refs
}

// detectPage runs the taxonomy table over one page.
func (d *Detector) detectPage(page ocr.Page, sourceDocID string) []Reference {
	text := page.Text
	exclusions := juratRx.FindAllStringIndex(text, -1)

	var refs []Reference
	for _, pat := range taxonomy {
		for _, loc := range pat.rx.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if d.inZoneRadius(start, exclusions) {
				continue
			}

			matched := text[start:end]
			value, ok := normalizeValue(pat, text, loc)
			if !ok {
				continue
			}

			refs = append(refs, Reference{
				Type:             pat.refType,
				Value:            value,
				Text:             matched,
				Snippet:          snippet(text, start, d.snippetRadius),
				SourcePage:       page.Number,
				SourceDocumentID: sourceDocID,
				Rect:             approximateRect(text, start, end),
				Confidence:       page.Confidence,
			})
		}
	}
	return refs
}

// Occurrence is a bare (type, value) sighting, used by the anchor builder
// which only needs to know what appears on a page, not where.
type Occurrence struct {
	Type  RefType
	Value string
}

// ScanOccurrences returns every normalized taxonomy occurrence in the text,
// in taxonomy order then text order. Trial-record cites are omitted: they
// name a page directly and are never anchored.
func ScanOccurrences(text string) []Occurrence {
	var occs []Occurrence
	for _, pat := range taxonomy {
		if pat.refType == RefTrialRecordCite {
			continue
		}
		for _, loc := range pat.rx.FindAllStringSubmatchIndex(text, -1) {
			value, ok := normalizeValue(pat, text, loc)
			if !ok {
				continue
			}
			occs = append(occs, Occurrence{Type: pat.refType, Value: value})
		}
	}
	return occs
}

// normalizeValue extracts and normalizes the captured value.
func normalizeValue(pat taxonomyPattern, text string, loc []int) (string, bool) {
	if pat.valueless {
		return SectionValue, true
	}
	if len(loc) < 4 || loc[2] < 0 {
		return "", false
	}
	value := text[loc[2]:loc[3]]

	switch pat.refType {
	case RefAffidavit:
		value = trailingDateRx.ReplaceAllString(value, "")
		return strings.ToLower(strings.TrimSpace(value)), true
	case RefExhibit:
		// "Exhibit No" is a form-number phrase, not a citation.
		if strings.EqualFold(value, "no") {
			return "", false
		}
		return strings.ToUpper(value), true
	default:
		return strings.ToUpper(value), true
	}
}

// inZone reports whether pos falls within the exclusion radius of a zone.
func (d *Detector) inZoneRadius(pos int, zones [][]int) bool {
	for _, z := range zones {
		if pos >= z[0]-d.signatureRadius && pos <= z[1]+d.signatureRadius {
			return true
		}
	}
	return false
}

// snippet extracts trimmed context around a match.
func snippet(text string, at, radius int) string {
	start := at - radius
	if start < 0 {
		start = 0
	}
	end := at + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

// approximateRect derives a normalized bounding box from the match's line
// and column position within the page text.
func approximateRect(text string, start, end int) Rect {
	before := text[:start]
	lineNo := strings.Count(before, "\n")
	totalLines := strings.Count(text, "\n") + 1

	lineStart := strings.LastIndex(before, "\n") + 1
	lineEnd := strings.Index(text[start:], "\n")
	if lineEnd < 0 {
		lineEnd = len(text)
	} else {
		lineEnd += start
	}
	lineLen := lineEnd - lineStart
	if lineLen < 1 {
		lineLen = 1
	}

	x := float64(start-lineStart) / float64(lineLen)
	w := float64(end-start) / float64(lineLen)
	y := float64(lineNo) / float64(totalLines)
	h := 1.0 / float64(totalLines)

	return Rect{X: clamp01(x), Y: clamp01(y), Width: clamp01(w), Height: clamp01(h)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
