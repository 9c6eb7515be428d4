package normalizer

import (
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// minDetectionLength is the shortest text worth running detection on
const minDetectionLength = 50

// minDetectionConfidence rejects ambiguous classifications
const minDetectionConfidence = 0.7

// detectLanguage classifies title+description into de/fr/en/it. Short texts
// and low-confidence results leave the field empty.
func (n *Normalizer) detectLanguage(job *models.Job) {
	if job.Language != "" {
		return
	}

	text := strings.TrimSpace(job.Title + " " + job.Description)
	if len([]rune(text)) < minDetectionLength {
		return
	}

	confidences := n.detector.ComputeLanguageConfidenceValues(text)
	if len(confidences) == 0 {
		return
	}

	best := confidences[0]
	if best.Value() < minDetectionConfidence {
		return
	}

	code := strings.ToLower(best.Language().IsoCode639_1().String())
	switch code {
	case models.LanguageGerman, models.LanguageFrench, models.LanguageEnglish, models.LanguageItalian:
		job.Language = code
	}
}
