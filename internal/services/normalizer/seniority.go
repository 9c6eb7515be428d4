package normalizer

import (
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// seniorityRules are checked in order; the first keyword hit wins, so the
// most specific levels come first.
var seniorityRules = []struct {
	level    string
	keywords []string
}{
	{models.SeniorityHead, []string{"head of", "director", "directeur", "direktor", "chef de"}},
	{models.SeniorityLead, []string{"lead", "leiter", "team lead", "chef d'équipe", "teamleiter"}},
	{models.SenioritySenior, []string{"senior", "sr.", "experienced", "erfahren", "expérimenté"}},
	{models.SeniorityMid, []string{"mid-level", "mid level", "confirmé", "confirmed"}},
	{models.SeniorityJunior, []string{"junior", "jr.", "anfänger", "débutant"}},
	{models.SeniorityIntern, []string{"intern", "internship", "praktikant", "praktikum", "stage", "stagiaire", "trainee"}},
}

// inferSeniority reads the level off the job title. Unknown titles return "".
func inferSeniority(title string) string {
	lower := strings.ToLower(title)
	for _, rule := range seniorityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.level
			}
		}
	}
	return ""
}
