package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoHeadingPenalty_SubtractsFromBase(t *testing.T) {
	assert.InDelta(t, 0.80, NoHeadingPenalty(FamilyNumbered), 0.0001)
	assert.InDelta(t, 0.77, NoHeadingPenalty(FamilyTabbed), 0.0001)
}

func TestNoHeadingPenalty_NeverDropsBelowFloor(t *testing.T) {
	assert.InDelta(t, 0.70, NoHeadingPenalty(0.72), 0.0001)
	assert.InDelta(t, 0.70, NoHeadingPenalty(0.50), 0.0001)
}

func TestLengthPenalty_CapsOutliers(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   float64
	}{
		{"too short", 5, 0.75},
		{"lower bound", 10, 0.95},
		{"normal", 40, 0.95},
		{"upper bound", 200, 0.95},
		{"too long", 201, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LengthPenalty(0.95, tt.length), 0.0001)
		})
	}
}

func TestLengthPenalty_DoesNotRaiseLowScores(t *testing.T) {
	// A base already below the cap stays put.
	assert.InDelta(t, 0.60, LengthPenalty(0.60, 5), 0.0001)
}

func TestTokenOverlap_RatioOfReferenceTokens(t *testing.T) {
	ref := []string{"rino", "ferrante"}

	assert.InDelta(t, 1.0, TokenOverlap(ref, []string{"rino", "ferrante"}), 0.0001)
	assert.InDelta(t, 0.5, TokenOverlap(ref, []string{"rino", "rossi"}), 0.0001)
	assert.InDelta(t, 0.0, TokenOverlap(ref, []string{"lisa", "hatem"}), 0.0001)
}

func TestTokenOverlap_EmptyReferenceScoresZero(t *testing.T) {
	assert.Zero(t, TokenOverlap(nil, []string{"rino"}))
}

func TestClamp_Bounds(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.InDelta(t, 0.92, Clamp(0.92), 0.0001)
}
