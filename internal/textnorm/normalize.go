// Package textnorm normalizes raw OCR page text before detection.
//
// All downstream pattern matching (index parsing, reference detection,
// anchor building) runs on the output of this package, so normalization is
// strictly deterministic: the same raw text always produces the same clean
// text. Bad input degrades to lightly cleaned text, never an error.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// PageRole describes how a page participates in detection.
type PageRole string

const (
	RoleIndex PageRole = "index"
	RoleBody  PageRole = "body"
)

// indexHeadingRx matches the heading that gates index-only behavior.
var indexHeadingRx = regexp.MustCompile(`(?i)\b(INDEX|TABLE OF CONTENTS)\b`)

// numberedLineRx matches a line already carrying index numbering.
var numberedLineRx = regexp.MustCompile(`^\s*(\d{1,3})[\).:\s-]+\S`)

var multiSpaceRx = regexp.MustCompile(`[ \t]+`)

// Normalizer cleans raw OCR text.
type Normalizer struct {
	bandFraction float64
}

// NewNormalizer creates a Normalizer. bandFraction is the share of lines
// stripped from the top and bottom of each page as the header/footer band.
func NewNormalizer(bandFraction float64) *Normalizer {
	if bandFraction < 0 || bandFraction >= 0.5 {
		bandFraction = 0.08
	}
	return &Normalizer{bandFraction: bandFraction}
}

// Normalize cleans one page of raw OCR text for the given role.
//
// For body pages the header/footer band is stripped so running headers never
// match as content. Index pages keep every line: the INDEX heading often sits
// inside the band and gates all index-only behavior downstream. The fixed OCR
// correction table and dash unification are applied to both roles.
func (n *Normalizer) Normalize(raw string, role PageRole) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	if role != RoleIndex {
		lines = n.stripBand(lines)
	}

	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = NormalizeDashes(line)
		line = applyCorrections(line)
		line = strings.TrimRight(line, " \t")
		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}

// stripBand removes the header and footer line bands.
func (n *Normalizer) stripBand(lines []string) []string {
	band := int(float64(len(lines)) * n.bandFraction)
	if band == 0 || len(lines) <= 2*band {
		return lines
	}
	return lines[band : len(lines)-band]
}

// EnforceIndexNumbering reconstructs numbered index lines 1..K from the
// caller-supplied canonical item list when the OCR numbering is missing or
// corrupted. It applies only to text containing an INDEX heading; any other
// page is returned unchanged.
func (n *Normalizer) EnforceIndexNumbering(text string, canonical []string) string {
	if len(canonical) == 0 || !indexHeadingRx.MatchString(text) {
		return text
	}

	lines := strings.Split(text, "\n")

	headingIdx := -1
	for i, line := range lines {
		if indexHeadingRx.MatchString(line) {
			headingIdx = i
			break
		}
	}
	if headingIdx < 0 {
		return text
	}

	// Count how many expected ordinals survived OCR.
	seen := map[int]bool{}
	for _, line := range lines[headingIdx+1:] {
		if m := numberedLineRx.FindStringSubmatch(line); m != nil {
			var no int
			fmt.Sscanf(m[1], "%d", &no)
			if no >= 1 && no <= len(canonical) {
				seen[no] = true
			}
		}
	}
	if len(seen) == len(canonical) {
		return text
	}

	// Numbering is corrupted: rebuild the block after the heading.
	rebuilt := make([]string, 0, headingIdx+1+len(canonical))
	rebuilt = append(rebuilt, lines[:headingIdx+1]...)
	for i, label := range canonical {
		rebuilt = append(rebuilt, fmt.Sprintf("%d. %s", i+1, label))
	}
	return strings.Join(rebuilt, "\n")
}

// NormalizeDashes unifies en and em dashes so pattern matching sees one form.
func NormalizeDashes(s string) string {
	s = strings.ReplaceAll(s, "–", "-") // en dash
	s = strings.ReplaceAll(s, "—", "-") // em dash
	return s
}

// CollapseSpaces collapses runs of spaces and tabs and trims the result.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRx.ReplaceAllString(s, " "))
}

// HasIndexHeading reports whether the text contains an INDEX or
// TABLE OF CONTENTS heading.
func HasIndexHeading(text string) bool {
	return indexHeadingRx.MatchString(text)
}
