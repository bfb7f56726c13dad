// Package parse extracts structured receipt fields from raw OCR text.
//
// Extraction is best effort: every field carries a confidence score and
// a found flag, and callers fall back to manual entry when a field is
// missing. Heuristics favor false negatives over wrong values.
package parse

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"scontrino/internal/core"
)

// Extraction is the result of parsing a receipt's OCR text.
type Extraction struct {
	Date           core.Date
	DateFound      bool
	DateConfidence float64

	Items           string
	ItemsFound      bool
	ItemsConfidence float64

	Amount           core.Money
	AmountFound      bool
	AmountConfidence float64
}

// Lines matching these keywords are summary rows, never purchased items.
var exclusionKeywords = []string{"subtotal", "tax", "total", "amount", "due", "balance", "change"}

type datePattern struct {
	re      *regexp.Regexp
	layouts []string
}

// Date patterns in priority order. Numeric forms are unambiguous per
// pattern; textual forms try a couple of layouts.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), []string{"2006-01-02"}},
	{regexp.MustCompile(`\d{2}/\d{2}/\d{4}`), []string{"01/02/2006"}},
	{regexp.MustCompile(`\d{2}-\d{2}-\d{4}`), []string{"02-01-2006"}},
	{regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4}`), []string{"2 Jan 2006", "2 January 2006"}},
	{regexp.MustCompile(`[A-Za-z]{3}\s+\d{1,2},?\s+\d{4}`), []string{"Jan 2, 2006", "Jan 2 2006"}},
}

var (
	quantityRe   = regexp.MustCompile(`x\d+`)
	itemAmountRe = regexp.MustCompile(`(?:Rp|USD|\$|€|£)?\s*\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2,3})?`)
	amountRes    = []*regexp.Regexp{
		regexp.MustCompile(`(?:Rp|USD|\$|€|£)?\s*(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?)`),
		regexp.MustCompile(`\$?\s*(\d+[,.]?\d*\.?\d{2})`),
	}
	digitsOnlyRe = regexp.MustCompile(`^\d+$`)
)

// Parse extracts all receipt fields from OCR text.
func Parse(text string) Extraction {
	var ex Extraction
	ex.Date, ex.DateConfidence, ex.DateFound = ExtractDate(text)
	ex.Items, ex.ItemsConfidence, ex.ItemsFound = ExtractItems(text)
	ex.Amount, ex.AmountConfidence, ex.AmountFound = ExtractAmount(text)
	return ex
}

// ExtractDate finds the transaction date in OCR text.
func ExtractDate(text string) (core.Date, float64, bool) {
	for _, p := range datePatterns {
		match := p.re.FindString(text)
		if match == "" {
			continue
		}
		for _, layout := range p.layouts {
			t, err := time.Parse(layout, match)
			if err != nil {
				continue
			}
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), 0.9, true
		}
	}
	slog.Warn("No date found in OCR text")
	return core.Date{}, 0, false
}

// ExtractItems collects purchase lines from OCR text, joined with "; "
// and truncated to the items length limit.
func ExtractItems(text string) (string, float64, bool) {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		original := strings.TrimSpace(line)
		lower := strings.ToLower(original)
		if lower == "" {
			continue
		}
		if containsAny(lower, exclusionKeywords) {
			continue
		}
		if looksLikeDate(original) {
			continue
		}
		if !quantityRe.MatchString(lower) && !itemAmountRe.MatchString(original) {
			continue
		}
		cleaned := strings.Join(strings.Fields(original), " ")
		// Bare numbers and phone-number-like runs are noise, not items.
		compact := strings.ReplaceAll(strings.ReplaceAll(cleaned, " ", ""), ".", "")
		if digitsOnlyRe.MatchString(cleaned) || (digitsOnlyRe.MatchString(compact) && len(compact) > 15) {
			continue
		}
		items = append(items, cleaned)
	}
	if len(items) == 0 {
		slog.Warn("No items found in OCR text")
		return "", 0, false
	}

	joined := strings.Join(items, "; ")
	if len(joined) > core.MaxItemsLength {
		joined = joined[:core.MaxItemsLength]
	}
	return joined, 0.85, true
}

// ExtractAmount finds the receipt total. Amounts on or next to a line
// mentioning "total" win; otherwise the largest amount anywhere is used
// with lower confidence.
func ExtractAmount(text string) (core.Money, float64, bool) {
	lines := strings.Split(text, "\n")

	var totalCandidates []int64
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "total") || strings.Contains(lower, "subtotal") {
			continue
		}
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi >= len(lines) {
			hi = len(lines) - 1
		}
		for _, searchLine := range lines[lo : hi+1] {
			totalCandidates = append(totalCandidates, amountsIn(searchLine)...)
		}
	}
	if cents, ok := maxAmount(totalCandidates); ok {
		return core.Money{Cents: cents}, 0.95, true
	}

	if cents, ok := maxAmount(amountsIn(text)); ok {
		return core.Money{Cents: cents}, 0.75, true
	}

	slog.Warn("No amounts found in OCR text")
	return core.Money{}, 0, false
}

func amountsIn(s string) []int64 {
	var out []int64
	for _, re := range amountRes {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			if cents, ok := normalizeCents(m[1]); ok {
				out = append(out, cents)
			}
		}
	}
	return out
}

// normalizeCents resolves thousands vs decimal separators and converts
// the amount to cents. A run of more than ten digits is rejected as a
// phone number or ID.
func normalizeCents(s string) (int64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0:
		// Both present, the last one is the decimal separator.
		if dot > comma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
	case dot >= 0:
		// A three-digit tail means a thousands separator (300.150).
		if len(s)-dot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	case comma >= 0:
		if len(s)-comma-1 == 2 {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if len(strings.ReplaceAll(s, ".", "")) > 10 {
		return 0, false
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0, false
	}
	return cents, true
}

func maxAmount(cands []int64) (int64, bool) {
	if len(cands) == 0 {
		return 0, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c > best {
			best = c
		}
	}
	return best, true
}

// looksLikeDate reports whether the line is a date and nothing more.
// Item lines that merely contain a date-shaped number keep their text.
func looksLikeDate(line string) bool {
	for _, p := range datePatterns {
		m := p.re.FindString(line)
		if m == "" {
			continue
		}
		rest := strings.Replace(line, m, "", 1)
		if !strings.ContainsFunc(rest, unicode.IsLetter) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
