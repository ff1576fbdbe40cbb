// Package detect scans body pages for in-text citations of the legal
// reference taxonomy: exhibits, tabs, schedules, affidavits, and the three
// section types (undertakings, refusals, matters under advisement).
package detect

// RefType is the reference taxonomy.
type RefType string

const (
	RefExhibit         RefType = "exhibit"
	RefTab             RefType = "tab"
	RefSchedule        RefType = "schedule"
	RefAffidavit       RefType = "affidavit"
	RefUndertaking     RefType = "undertaking"
	RefRefusal         RefType = "refusal"
	RefUnderAdvisement RefType = "under_advisement"
	RefTrialRecordCite RefType = "tr_cite"
)

// SectionValue is the constant value shared by the three section types,
// which match on keyword presence alone.
const SectionValue = "section"

// Rect is a normalized 0..1 bounding box for highlight rendering. Exact
// glyph coordinates are outside this core; the box is a deterministic
// approximation from the match's line and column position.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Reference is one detected in-body citation.
type Reference struct {
	Type             RefType `json:"type"`
	Value            string  `json:"value"`   // normalized: uppercase codes, lowercase affidavit names
	Text             string  `json:"text"`    // verbatim matched substring
	Snippet          string  `json:"snippet"` // surrounding context for review
	SourcePage       int     `json:"sourcePage"`
	SourceDocumentID string  `json:"sourceDocumentId"`
	Rect             Rect    `json:"rect"`
	Confidence       float64 `json:"confidence"`
}
