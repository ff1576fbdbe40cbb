// Package index parses a document's INDEX section into ordered items.
//
// Parsing is a single finite pass: it starts at an INDEX or TABLE OF
// CONTENTS heading, tries each line against an ordered cascade of pattern
// families (first match wins), and stops at the first obvious non-index
// marker. The cascade is a data table, not branching code, so new
// legal-document shapes are added by appending a row.
package index

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/confidence"
)

// ItemType classifies an index entry by its label keywords.
type ItemType string

const (
	TypeTab      ItemType = "tab"
	TypeExhibit  ItemType = "exhibit"
	TypeSchedule ItemType = "schedule"
	TypePleading ItemType = "pleading"
	TypeOrder    ItemType = "order"
	TypeOther    ItemType = "other"
)

// Item is one entry in a document's table of contents.
type Item struct {
	Ordinal    int      `json:"ordinal"`
	Label      string   `json:"label"`
	Type       ItemType `json:"type"`
	Confidence float64  `json:"confidence"`
	PageHint   int      `json:"pageHint,omitempty"` // 0 when the index carries no page column
}

// patternFamily is one row of the matching cascade.
type patternFamily struct {
	name    string
	rx      *regexp.Regexp
	base    float64
	ordinal func(m []string) int    // -1 when the pattern has no numeric capture
	label   func(m []string) string
}

// families is evaluated in priority order, first match wins.
var families = []patternFamily{
	{
		name: "numbered", // "1. text", "1) text", "1 - text", "1: text"
		rx:   regexp.MustCompile(`^\s*(\d{1,3})\s*[.\):-]\s*(\S.*)$`),
		base: confidence.FamilyNumbered,
		ordinal: func(m []string) int {
			n, _ := strconv.Atoi(m[1])
			return n
		},
		label: func(m []string) string { return strings.TrimSpace(m[2]) },
	},
	{
		name: "tabbed", // "TAB 3 — text", "EXHIBIT A — text"
		rx:   regexp.MustCompile(`(?i)^\s*(TAB|EXHIBIT)\s+([A-Z0-9]{1,3})\s*(?:[-–—:]\s*)?(.*)$`),
		base: confidence.FamilyTabbed,
		ordinal: func(m []string) int {
			if n, err := strconv.Atoi(m[2]); err == nil {
				return n
			}
			return -1
		},
		label: func(m []string) string {
			rest := strings.TrimSpace(m[3])
			if rest == "" {
				return strings.TrimSpace(strings.ToUpper(m[1]) + " " + strings.ToUpper(m[2]))
			}
			return rest
		},
	},
	{
		name: "legaldash", // "Pleadings — Application", known legal term before the dash
		rx:   regexp.MustCompile(`^\s*([A-Z][A-Za-z0-9 ]{2,60}?)\s+[-–—]\s+(\S.*)$`),
		base: confidence.FamilyLegalDash,
		ordinal: func(m []string) int { return -1 },
		label: func(m []string) string {
			return strings.TrimSpace(m[1]) + " - " + strings.TrimSpace(m[2])
		},
	},
	{
		name: "bullet", // "- text", "• text"
		rx:   regexp.MustCompile(`^\s*[-•]\s+(\S.*)$`),
		base: confidence.FamilyBullet,
		ordinal: func(m []string) int { return -1 },
		label: func(m []string) string { return strings.TrimSpace(m[1]) },
	},
}

// legalTerms gates the legaldash family: the text before the dash must start
// with a term we have seen open an index line in this document corpus.
var legalTerms = []string{
	"PLEADINGS", "TRANSCRIPT", "TEMPORARY ORDERS", "TRIAL SCHEDULING",
	"SUBRULE", "FINANCIAL STATEMENT", "ENDORSEMENT", "AFFIDAVIT",
	"MOTION", "FACTUM", "ORDERS",
}

var (
	headingRx = regexp.MustCompile(`(?i)\b(INDEX|TABLE OF CONTENTS)\b`)

	// Obvious non-index markers that end the scan. Jurat phrases must stay
	// narrow: labels like "Sworn Financial Statements" are legitimate index
	// entries, so only signature-block wording stops the scan.
	stopRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*Page\s+\d+\s*$`),
		regexp.MustCompile(`(?i)\bCourt File\b`),
		regexp.MustCompile(`(?i)https?://|www\.`),
		regexp.MustCompile(`(?i)\bsworn\s+(?:to\s+)?before\b`),
		regexp.MustCompile(`(?i)\bcommissioner for taking\b`),
		regexp.MustCompile(`(?i)^\s*signature:?\s*$`),
		regexp.MustCompile(`^\s*_{3,}\s*$`),
		regexp.MustCompile(`(?i)^\s*(dated|date[d]?:)\s`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	}

	// Address and contact boilerplate that appears between index lines on
	// cover pages; skipped, not a stop.
	skipRx = regexp.MustCompile(`(?i)\b(AVENUE|STREET|DRIVE|ROAD|SUITE|CORPORATION|BARRISTERS?)\b|@|TEL[:.]|FAX[:.]`)

	// Trailing page column: dot leader or wide gap, then digits.
	pageHintRx = regexp.MustCompile(`(?:\.{2,}|\s{2,})\s*(\d{1,4})\s*$`)
)

// Parser converts normalized index text into ordered items.
type Parser struct{}

// NewParser creates an index parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse scans text line by line and returns the detected items sorted by
// ordinal. A missing INDEX heading does not abort the scan; it lowers every
// item's confidence instead, so weak detections stay reviewable.
func (p *Parser) Parse(text string) []Item {
	lines := strings.Split(text, "\n")

	start := 0
	headingFound := false
	for i, line := range lines {
		if headingRx.MatchString(line) {
			start = i + 1
			headingFound = true
			break
		}
	}

	var items []Item
	seenOrdinals := map[int]bool{}
	seenLabels := map[string]bool{}

scan:
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		for _, rx := range stopRxs {
			if rx.MatchString(trimmed) {
				break scan
			}
		}

		if skipRx.MatchString(trimmed) {
			continue
		}

		item, ok := p.matchLine(trimmed, len(items), headingFound)
		if !ok {
			continue
		}

		// Dedup: reject a repeated ordinal or a case-insensitive repeat label.
		labelKey := strings.ToLower(item.Label)
		if seenOrdinals[item.Ordinal] || seenLabels[labelKey] {
			continue
		}
		seenOrdinals[item.Ordinal] = true
		seenLabels[labelKey] = true

		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Ordinal < items[j].Ordinal
	})
	return items
}

// matchLine tries the cascade against one line.
func (p *Parser) matchLine(line string, currentCount int, headingFound bool) (Item, bool) {
	pageHint := 0
	if m := pageHintRx.FindStringSubmatch(line); m != nil {
		pageHint, _ = strconv.Atoi(m[1])
		line = strings.TrimSpace(pageHintRx.ReplaceAllString(line, ""))
		line = strings.TrimRight(line, ". ")
	}

	for _, fam := range families {
		m := fam.rx.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if fam.name == "legaldash" && !startsWithLegalTerm(m[1]) {
			continue
		}

		label := fam.label(m)
		if len(label) < 3 || allDigits(label) {
			return Item{}, false
		}

		ordinal := fam.ordinal(m)
		if ordinal < 1 {
			ordinal = currentCount + 1
		}

		score := fam.base
		if !headingFound {
			score = confidence.NoHeadingPenalty(score)
		}
		score = confidence.LengthPenalty(score, len(label))

		return Item{
			Ordinal:    ordinal,
			Label:      label,
			Type:       inferType(label),
			Confidence: confidence.Clamp(score),
			PageHint:   pageHint,
		}, true
	}
	return Item{}, false
}

// inferType classifies a label from its keywords, independent of which
// pattern family matched.
func inferType(label string) ItemType {
	u := strings.ToUpper(label)
	switch {
	case strings.Contains(u, "EXHIBIT"):
		return TypeExhibit
	case strings.Contains(u, "TAB "), strings.HasPrefix(u, "TAB"):
		return TypeTab
	case strings.Contains(u, "SCHEDULE"):
		return TypeSchedule
	case strings.Contains(u, "PLEADING"), strings.Contains(u, "APPLICATION"),
		strings.Contains(u, "ANSWER"), strings.Contains(u, "REPLY"):
		return TypePleading
	case strings.Contains(u, "ORDER"), strings.Contains(u, "ENDORSEMENT"):
		return TypeOrder
	default:
		return TypeOther
	}
}

func startsWithLegalTerm(prefix string) bool {
	u := strings.ToUpper(strings.TrimSpace(prefix))
	for _, term := range legalTerms {
		if strings.HasPrefix(u, term) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
