package normalizer

import (
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// contractRules are checked in order; narrow forms before broad ones so
// "Praktikum (befristet)" lands on internship, not contract.
var contractRules = []struct {
	contractType string
	keywords     []string
}{
	{models.ContractApprenticeship, []string{"apprenticeship", "apprentissage", "lehre", "lehrstelle", "lehrling"}},
	{models.ContractInternship, []string{"internship", "praktikum", "stage", "stagiaire", "trainee"}},
	{models.ContractTemporary, []string{"temporary", "temp ", "temporär", "intérim", "interim"}},
	{models.ContractContract, []string{"contract", "freelance", "befristet", "cdd", "contrat à durée déterminée"}},
	{models.ContractPartTime, []string{"part-time", "part time", "teilzeit", "temps partiel", "50%", "60%", "70%", "80%", "90%"}},
	{models.ContractFullTime, []string{"full-time", "full time", "100%", "vollzeit", "temps plein", "festanstellung", "unbefristet", "cdi", "permanent"}},
}

// inferContract classifies the contract type from the first non-empty of
// employment type, title, and snippet.
func inferContract(employmentType, title, snippet string) string {
	var source string
	switch {
	case strings.TrimSpace(employmentType) != "":
		source = employmentType
	case strings.TrimSpace(title) != "":
		source = title
	default:
		source = snippet
	}
	if source == "" {
		return ""
	}

	lower := strings.ToLower(source)
	for _, rule := range contractRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.contractType
			}
		}
	}
	return ""
}
