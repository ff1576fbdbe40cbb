// Package confidence consolidates every confidence signal used by the
// detection and linking pipeline into named, tested functions.
//
// Detectors never do inline confidence arithmetic; they call into this
// package so each signal has exactly one definition.
package confidence

import "math"

// Pattern-family base scores for index parsing.
const (
	FamilyNumbered  = 0.95
	FamilyTabbed    = 0.92
	FamilyLegalDash = 0.90
	FamilyBullet    = 0.85
)

// Match-method scores for anchor building and linking.
const (
	ExactMatch       = 1.0
	TokenAffidavit   = 0.90
	TokenExhibit     = 0.85
	SectionMatch     = 0.80
	TemplateFallback = 0.60
)

// DefaultMinConfidence is the strict linking threshold. Nothing below it is
// ever linked; references under it are dropped, not force-linked.
const DefaultMinConfidence = 0.92

const (
	noHeadingPenalty  = 0.15
	noHeadingFloor    = 0.70
	lengthOutlierCap  = 0.75
	labelMinLength    = 10
	labelMaxLength    = 200
)

// NoHeadingPenalty lowers a base score when index items were parsed without
// an INDEX heading appearing first. Floored so a weak signal is still usable
// for review, never silently discarded.
func NoHeadingPenalty(base float64) float64 {
	return math.Max(noHeadingFloor, base-noHeadingPenalty)
}

// LengthPenalty caps the score of labels that are length outliers. Very
// short labels are usually OCR fragments, very long ones merged lines.
func LengthPenalty(base float64, labelLength int) float64 {
	if labelLength < labelMinLength || labelLength > labelMaxLength {
		return math.Min(base, lengthOutlierCap)
	}
	return base
}

// TokenOverlap scores free-text name similarity as the ratio of shared
// tokens to tokens in the reference name. Used only for affidavit names,
// the one place partial matching is permitted.
func TokenOverlap(refTokens, anchorTokens []string) float64 {
	if len(refTokens) == 0 {
		return 0
	}
	anchorSet := make(map[string]bool, len(anchorTokens))
	for _, t := range anchorTokens {
		anchorSet[t] = true
	}
	shared := 0
	for _, t := range refTokens {
		if anchorSet[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(refTokens))
}

// Clamp bounds a score to [0,1].
func Clamp(score float64) float64 {
	return math.Max(0.0, math.Min(1.0, score))
}
