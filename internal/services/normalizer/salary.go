package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// Static conversion rates to CHF
var currencyRates = map[string]float64{
	"CHF": 1.0,
	"EUR": 0.96,
	"USD": 0.88,
	"GBP": 1.12,
}

// Annualization multipliers per salary period
var periodMultipliers = map[string]int{
	models.SalaryPeriodYearly:  1,
	models.SalaryPeriodMonthly: 12,
	models.SalaryPeriodHourly:  2080,
}

var (
	salaryRangeRe  = regexp.MustCompile(`(\d[\d.,]*)\s*[kK]?\s*[-–—to]+\s*(\d[\d.,]*)\s*[kK]?`)
	salarySingleRe = regexp.MustCompile(`(\d[\d.,]*)`)
	// A k next to any number marks the whole string as abbreviated, so a
	// shared suffix like "80-100k" scales both bounds.
	kContextRe = regexp.MustCompile(`(?i)\d\s*k`)
	// Currency codes need word boundaries; symbols sit next to digits
	currencyCodeRe   = regexp.MustCompile(`(?i)\b(CHF|EUR|USD|GBP)\b`)
	currencySymbolRe = regexp.MustCompile(`[€$£]`)
)

var symbolCurrencies = map[string]string{
	"€": "EUR",
	"$": "USD",
	"£": "GBP",
}

// normalizeSalary parses salary_original into CHF-per-year bounds. Records
// that already carry both bounds are left alone.
func normalizeSalary(job *models.Job) {
	if job.SalaryMinCHF > 0 && job.SalaryMaxCHF > 0 {
		return
	}
	if strings.TrimSpace(job.SalaryOriginal) == "" {
		return
	}

	minVal, maxVal, ok := parseSalaryRange(job.SalaryOriginal)
	if !ok {
		return
	}

	currency := detectCurrency(job.SalaryOriginal)
	rate := currencyRates[currency]

	period := job.SalaryPeriod
	multiplier, known := periodMultipliers[period]
	if !known {
		period = models.SalaryPeriodYearly
		multiplier = 1
	}

	minCHF := int(math.Round(minVal * rate * float64(multiplier)))
	maxCHF := int(math.Round(maxVal * rate * float64(multiplier)))
	if minCHF > maxCHF {
		minCHF, maxCHF = maxCHF, minCHF
	}

	job.SalaryMinCHF = minCHF
	job.SalaryMaxCHF = maxCHF
	job.SalaryCurrency = currency
	job.SalaryPeriod = period
}

// parseSalaryRange extracts a min-max pair, or a single value used for both
// bounds. Returns ok=false when no number is present.
func parseSalaryRange(original string) (float64, float64, bool) {
	hasK := kContextRe.MatchString(original)

	if m := salaryRangeRe.FindStringSubmatch(original); m != nil {
		minVal, okMin := parseAmount(m[1], hasK)
		maxVal, okMax := parseAmount(m[2], hasK)
		if okMin && okMax {
			return minVal, maxVal, true
		}
	}

	if m := salarySingleRe.FindStringSubmatch(original); m != nil {
		if val, ok := parseAmount(m[1], hasK); ok {
			return val, val, true
		}
	}

	return 0, 0, false
}

// parseAmount turns "80,000" or "80" + k-suffix into a numeric value.
// The k multiplier only applies below 1000 so "80,000k" stays sane.
func parseAmount(num string, hasK bool) (float64, bool) {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(num)
	if cleaned == "" {
		return 0, false
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}

	if hasK && val < 1000 {
		val *= 1000
	}
	return val, true
}

// detectCurrency finds a currency code or symbol; CHF is assumed otherwise.
func detectCurrency(original string) string {
	if m := currencyCodeRe.FindStringSubmatch(original); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := currencySymbolRe.FindString(original); m != "" {
		return symbolCurrencies[m]
	}
	return "CHF"
}
