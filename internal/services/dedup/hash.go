package dedup

import (
	"crypto/md5"
	"fmt"
	"strings"
	"unicode"
)

// genderMarkers are removed from titles before fuzzy hashing. Parenthesized
// and bare forms both appear in the wild.
var genderMarkers = []string{
	"(m/f/d)", "(m/w/d)", "(f/m/d)", "(w/m/d)", "(m/f/x)", "(w/m/x)",
	"(all genders)", "m/f/d", "m/w/d", "f/m/d", "w/m/d",
}

// seniorityTokens are dropped from titles so level variants of the same
// role collapse onto one fuzzy hash.
var seniorityTokens = map[string]bool{
	"senior": true, "junior": true, "lead": true, "head": true,
	"intern": true, "trainee": true,
	"sr.": true, "jr.": true, "sr": true, "jr": true,
}

// legalSuffixes are dropped from company names.
var legalSuffixes = map[string]bool{
	"ag": true, "gmbh": true, "sa": true, "sarl": true, "sàrl": true,
	"ltd": true, "inc": true, "corp": true, "se": true, "plc": true,
	"srl": true, "co": true, "llc": true, "pty": true, "bv": true, "nv": true,
}

// ComputeHash builds the exact-identity key: md5 of
// lower(title)|lower(company)|url.
func ComputeHash(title, company, url string) string {
	key := strings.ToLower(strings.TrimSpace(title)) + "|" +
		strings.ToLower(strings.TrimSpace(company)) + "|" +
		strings.TrimSpace(url)
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// ComputeFuzzyHash builds the cross-source near-identity key from the
// normalized title and company.
func ComputeFuzzyHash(title, company string) string {
	key := normalizeTitle(title) + "|" + normalizeCompany(company)
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// normalizeTitle lowercases, removes gender markers, drops seniority
// tokens, strips punctuation and collapses whitespace.
func normalizeTitle(title string) string {
	lower := strings.ToLower(title)
	for _, marker := range genderMarkers {
		lower = strings.ReplaceAll(lower, marker, " ")
	}

	var kept []string
	for _, token := range strings.Fields(lower) {
		if seniorityTokens[token] {
			continue
		}
		kept = append(kept, token)
	}

	return collapse(stripPunctuation(strings.Join(kept, " ")))
}

// normalizeCompany lowercases, strips punctuation before tokenizing so
// "A.G." folds to "ag", then drops legal suffixes.
func normalizeCompany(company string) string {
	cleaned := stripPunctuation(strings.ToLower(company))

	var kept []string
	for _, token := range strings.Fields(cleaned) {
		if legalSuffixes[token] {
			continue
		}
		kept = append(kept, token)
	}

	return strings.Join(kept, " ")
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
