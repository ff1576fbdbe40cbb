package textnorm

import "strings"

// ocrCorrections is a fixed table of known OCR misreads seen across the
// processed document set. Applied as a plain string-replace pass, longest
// needle first, so the output for a given input never changes between runs.
var ocrCorrections = []struct {
	from string
	to   string
}{
	// Garbled city/province headers
	{"Onlario", "Ontario"},
	{"ONLARIO", "ONTARIO"},
	{"Toronlo", "Toronto"},

	// Legal-term misreads
	{"Affidavil", "Affidavit"},
	{"AFFIDAVIL", "AFFIDAVIT"},
	{"Courl File", "Court File"},
	{"Exhibil", "Exhibit"},
	{"Index of Tabs", "INDEX"},

	// Postal codes: OCR reads the digit 5 as S inside letter-digit-letter groups
	{"MSV", "M5V"},
	{"LSR", "L5R"},
	{"KSA", "K5A"},

	// Phone prefixes with the same S/5 swap
	{"(90S)", "(905)"},
	{"(41G)", "(416)"},
}

// applyCorrections runs the substitution table over the text.
func applyCorrections(text string) string {
	for _, c := range ocrCorrections {
		text = strings.ReplaceAll(text, c.from, c.to)
	}
	return text
}
