package normalizer

import (
	"github.com/pemistahl/lingua-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

// Normalizer folds raw adapter records into the canonical schema: salary in
// CHF per year, detected language, inferred seniority and contract type,
// canton and tech tags. Fields already populated by an adapter are never
// overwritten, which also makes the whole chain idempotent.
type Normalizer struct {
	detector lingua.LanguageDetector
	logger   arbor.ILogger
}

// New creates a normalizer. Building the language detector loads its
// models, so construct once and share.
func New(logger arbor.ILogger) *Normalizer {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.German, lingua.French, lingua.English, lingua.Italian).
		Build()

	return &Normalizer{
		detector: detector,
		logger:   logger,
	}
}

// Normalize runs all stages over the job in place and returns it.
func (n *Normalizer) Normalize(job *models.Job) *models.Job {
	if job == nil {
		return nil
	}

	normalizeSalary(job)
	n.detectLanguage(job)

	if job.Seniority == "" {
		job.Seniority = inferSeniority(job.Title)
	}
	if job.ContractType == "" {
		job.ContractType = inferContract(job.EmploymentType, job.Title, job.DescriptionSnippet)
	}
	if job.Canton == "" {
		job.Canton = extractCanton(job.Location)
	}
	job.Tags = mergeTags(job.Tags, extractTags(job.Title+" "+job.Description))

	return job
}
