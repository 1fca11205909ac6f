package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount bounds accepted by ExtractAmount.
const (
	MinAmount = 1
	MaxAmount = 1_000_000
)

const number = `(\d{1,3}(?:,\d{3})+|\d+)`

// Currency-adjacent patterns are tried before a bare number.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)` + number + `\s*(?:rwf|frw|francs?)\b`),
	regexp.MustCompile(`(?i)\b(?:rwf|frw)\s*` + number),
	regexp.MustCompile(number),
}

var phonePattern = regexp.MustCompile(`(?:\+?250|\b0)(7[2389]\d{7})\b`)

// ExtractAmount returns the first amount within [MinAmount, MaxAmount].
func ExtractAmount(text string) (int, bool) {
	for _, p := range amountPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err != nil {
				continue
			}
			if n >= MinAmount && n <= MaxAmount {
				return n, true
			}
		}
	}
	return 0, false
}

// ExtractPhone returns a Rwandan mobile number in international form.
func ExtractPhone(text string) (string, bool) {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return "250" + m[1], true
}
