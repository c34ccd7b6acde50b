package market

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// leadingFloat parses the longest numeric prefix of s, or returns 0.
func leadingFloat(s string) float64 {
	end := 0
	for end < len(s) && strings.ContainsRune("0123456789.-eE+", rune(s[end])) {
		end++
	}
	for ; end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0
}

func cleanNumber(s string) float64 {
	return leadingFloat(nonNumeric.ReplaceAllString(s, ""))
}

// ParsePrice reads a display price such as "$12.34". Empty input sorts
// last and yields -Inf.
func ParsePrice(s string) float64 {
	if s == "" {
		return math.Inf(-1)
	}
	return cleanNumber(s)
}

// ParsePercentage reads a display percentage such as "+15.4%". Empty input
// yields -Inf.
func ParsePercentage(s string) float64 {
	if s == "" {
		return math.Inf(-1)
	}
	return cleanNumber(s)
}

// ParseVolume reads volumes such as "5.2M", "900K" or "1,200,000". Relative
// volume ("3.5x") is scaled by 100 and percentages are read as is, so mixed
// columns still sort sensibly. Empty input yields -Inf.
func ParseVolume(s string) float64 {
	if s == "" {
		return math.Inf(-1)
	}
	v := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(s), ",", ""))

	switch {
	case strings.HasSuffix(v, "x"):
		return leadingFloat(strings.TrimSuffix(v, "x")) * 100
	case strings.HasSuffix(v, "%"):
		return leadingFloat(strings.TrimSuffix(v, "%"))
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(v, "k"):
		mult, v = 1e3, strings.TrimSuffix(v, "k")
	case strings.HasSuffix(v, "m"):
		mult, v = 1e6, strings.TrimSuffix(v, "m")
	case strings.HasSuffix(v, "b"):
		mult, v = 1e9, strings.TrimSuffix(v, "b")
	}
	return cleanNumber(v) * mult
}

// ParseCurrency reads amounts such as "$2.5M" or "$400k". Empty input
// yields 0.
func ParseCurrency(s string) float64 {
	if s == "" {
		return 0
	}
	return ParseVolume(s)
}

// ParseSentiment maps a sentiment word onto a 0-10 scale.
func ParseSentiment(s string) float64 {
	if s == "" {
		return 0
	}
	v := strings.ToLower(s)
	switch {
	case strings.Contains(v, "very bullish"), strings.Contains(v, "extreme"):
		return 10
	case strings.Contains(v, "very bearish"):
		return 0
	case strings.Contains(v, "bullish"), strings.Contains(v, "high"):
		return 8
	case strings.Contains(v, "positive"):
		return 7
	case strings.Contains(v, "neutral"), strings.Contains(v, "medium"):
		return 5
	case strings.Contains(v, "mixed"):
		return 4
	case strings.Contains(v, "bearish"), strings.Contains(v, "low"):
		return 2
	}
	return 5
}

// SortKind selects how a column's display strings are compared.
type SortKind int

const (
	SortString SortKind = iota
	SortNumber
	SortPrice
	SortPercentage
	SortVolume
	SortCurrency
	SortSentiment
)

// SortStocks returns a sorted copy of rows. field extracts the display
// value and kind selects the parser. The sort is stable.
func SortStocks[T any](rows []T, field func(T) string, kind SortKind, desc bool) []T {
	out := make([]T, len(rows))
	copy(out, rows)

	if kind == SortString {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := strings.ToLower(field(out[i])), strings.ToLower(field(out[j]))
			if desc {
				return a > b
			}
			return a < b
		})
		return out
	}

	parse := parser(kind)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := parse(field(out[i])), parse(field(out[j]))
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}

func parser(kind SortKind) func(string) float64 {
	switch kind {
	case SortPrice:
		return ParsePrice
	case SortPercentage:
		return ParsePercentage
	case SortVolume:
		return ParseVolume
	case SortCurrency:
		return ParseCurrency
	case SortSentiment:
		return func(s string) float64 {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
			return ParseSentiment(s)
		}
	default:
		return func(s string) float64 {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return 0
			}
			return f
		}
	}
}
