package index

import "github.com/Gurmittoor/hyperlinklaw-sub003/internal/confidence"

// TemplateProvider supplies a canonical item list for a known document
// profile. It exists for one recurring document shape whose index numbering
// is reliably destroyed by OCR; it is registered by the caller per profile
// and is never consulted unless Parse found nothing.
type TemplateProvider interface {
	// CanonicalItems returns the expected index labels for the profile, in
	// order, or nil when the profile is unknown.
	CanonicalItems(profile string) []string
}

// StaticTemplates is a TemplateProvider backed by a fixed map.
type StaticTemplates map[string][]string

// CanonicalItems implements TemplateProvider.
func (s StaticTemplates) CanonicalItems(profile string) []string {
	return s[profile]
}

// FallbackItems converts a canonical label list into index items. The items
// carry the template-fallback confidence so downstream consumers and the
// review UI can always tell them apart from genuinely detected items.
func FallbackItems(labels []string) []Item {
	items := make([]Item, 0, len(labels))
	for i, label := range labels {
		items = append(items, Item{
			Ordinal:    i + 1,
			Label:      label,
			Type:       inferType(label),
			Confidence: confidence.TemplateFallback,
		})
	}
	return items
}
