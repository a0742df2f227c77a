// internal/interact/currency.go
package interact

import (
	"regexp"
	"strconv"
	"strings"
)

// currencyMarks are stripped from either end of a price. Longer marks come
// first so "Rs." is not left as "s." after stripping "R".
var currencyMarks = []string{
	"INR", "USD", "EUR", "GBP", "JPY",
	"Rs.", "Rs", "RS.", "rs.",
	"₹", "$", "€", "£", "¥",
}

var (
	numericBody = regexp.MustCompile(`^[0-9][0-9., ]*$`)
	digitRun    = regexp.MustCompile(`[0-9][0-9,]*`)
)

// ParseCurrency converts a displayed price such as "₹1,299", "Rs. 1299.00",
// "1,23,456" or "€1.299,50" into a number. Anything it does not recognize is
// a *ParseError; it never guesses.
func ParseCurrency(raw string) (float64, error) {
	fail := func(msg string) (float64, error) {
		return 0, &ParseError{Kind: "currency", Input: raw, Msg: msg}
	}

	s := normalizeSpaces(raw)
	s = strings.TrimSuffix(s, "/-")
	s = stripMarks(s)
	if s == "" {
		return fail("no digits")
	}
	if !numericBody.MatchString(s) || !isDigit(s[len(s)-1]) {
		return fail("unexpected characters")
	}

	if !validSpaceGrouping(s) {
		return fail("malformed digit grouping")
	}
	s = strings.ReplaceAll(s, " ", "")
	intPart, fracPart, groupSep, ok := splitDecimal(s)
	if !ok {
		return fail("ambiguous separators")
	}
	if groupSep != 0 && !validGrouping(strings.Split(intPart, string(groupSep))) {
		return fail("malformed digit grouping")
	}

	number := intPart
	if groupSep != 0 {
		number = strings.ReplaceAll(intPart, string(groupSep), "")
	}
	if fracPart != "" {
		number += "." + fracPart
	}
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return fail(err.Error())
	}
	return v, nil
}

// ParseCount extracts the last integer from text such as
// "Showing 1 - 20 of 1,234 results".
func ParseCount(raw string) (int, error) {
	runs := digitRun.FindAllString(raw, -1)
	if len(runs) == 0 {
		return 0, &ParseError{Kind: "count", Input: raw, Msg: "no digits"}
	}
	last := strings.ReplaceAll(runs[len(runs)-1], ",", "")
	n, err := strconv.Atoi(last)
	if err != nil {
		return 0, &ParseError{Kind: "count", Input: raw, Msg: err.Error()}
	}
	return n, nil
}

func normalizeSpaces(s string) string {
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ").Replace(s)
	return strings.TrimSpace(s)
}

func stripMarks(s string) string {
	for changed := true; changed; {
		changed = false
		for _, mark := range currencyMarks {
			if strings.HasPrefix(s, mark) {
				s = strings.TrimSpace(strings.TrimPrefix(s, mark))
				changed = true
			}
			if strings.HasSuffix(s, mark) {
				s = strings.TrimSpace(strings.TrimSuffix(s, mark))
				changed = true
			}
		}
	}
	return s
}

// splitDecimal decides which separator, if any, marks the decimal part.
// groupSep is 0 when the integer part carries no grouping.
func splitDecimal(s string) (intPart, fracPart string, groupSep byte, ok bool) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots == 0 && commas == 0:
		return s, "", 0, true

	case dots > 0 && commas > 0:
		// The later separator is the decimal one and may appear once.
		// Prices carry at most two decimal digits.
		lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
		if lastDot > lastComma {
			if dots != 1 || len(s)-lastDot-1 > 2 {
				return "", "", 0, false
			}
			return s[:lastDot], s[lastDot+1:], ',', true
		}
		if commas != 1 || len(s)-lastComma-1 > 2 {
			return "", "", 0, false
		}
		return s[:lastComma], s[lastComma+1:], '.', true

	case commas > 0:
		return splitSingle(s, ',', commas)

	default:
		return splitSingle(s, '.', dots)
	}
}

// splitSingle handles a body with one kind of separator. A single separator
// followed by one or two digits is decimal; anything else is grouping, so
// "1.000" reads as a thousand just like "1,000".
func splitSingle(s string, sep byte, count int) (intPart, fracPart string, groupSep byte, ok bool) {
	last := strings.LastIndexByte(s, sep)
	if count == 1 && len(s)-last-1 <= 2 {
		return s[:last], s[last+1:], 0, true
	}
	return s, "", sep, true
}

// validSpaceGrouping checks "1 299" and "1 234 567,89" style bodies. Every
// space-separated group but the last is bare digits, and the digits leading
// the last group close out the grouping.
func validSpaceGrouping(s string) bool {
	if !strings.Contains(s, " ") {
		return true
	}
	tokens := strings.Split(s, " ")
	groups := make([]string, 0, len(tokens))
	for _, tok := range tokens[:len(tokens)-1] {
		if tok == "" || strings.ContainsAny(tok, ".,") {
			return false
		}
		groups = append(groups, tok)
	}
	tail := tokens[len(tokens)-1]
	n := 0
	for n < len(tail) && isDigit(tail[n]) {
		n++
	}
	return validGrouping(append(groups, tail[:n]))
}

// validGrouping accepts western (1,234,567) and Indian (12,34,567) grouping.
// A grouped number never starts with zero.
func validGrouping(groups []string) bool {
	if len(groups) < 2 {
		return len(groups) == 1 && groups[0] != ""
	}
	first, rest := groups[0], groups[1:]
	if len(first) < 1 || len(first) > 3 || first[0] == '0' {
		return false
	}
	if len(rest[len(rest)-1]) != 3 {
		return false
	}
	middle := rest[:len(rest)-1]
	western, indian := true, true
	for _, g := range middle {
		if len(g) != 3 {
			western = false
		}
		if len(g) != 2 {
			indian = false
		}
	}
	if indian && len(middle) > 0 && len(first) > 2 {
		indian = false
	}
	return western || indian
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
