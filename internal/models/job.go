package models

import (
	"time"
)

// Salary periods accepted on a job record
const (
	SalaryPeriodYearly  = "yearly"
	SalaryPeriodMonthly = "monthly"
	SalaryPeriodHourly  = "hourly"
)

// Seniority levels, ordered roughly by scope of responsibility
const (
	SeniorityIntern   = "intern"
	SeniorityJunior   = "junior"
	SeniorityMid      = "mid"
	SenioritySenior   = "senior"
	SeniorityLead     = "lead"
	SeniorityHead     = "head"
	SeniorityDirector = "director"
)

// Contract types
const (
	ContractFullTime       = "full_time"
	ContractPartTime       = "part_time"
	ContractContract       = "contract"
	ContractInternship     = "internship"
	ContractApprenticeship = "apprenticeship"
	ContractTemporary      = "temporary"
)

// Languages a posting can be classified as
const (
	LanguageGerman  = "de"
	LanguageFrench  = "fr"
	LanguageEnglish = "en"
	LanguageItalian = "it"
)

// EmbeddingDimension is the length of a job embedding vector
const EmbeddingDimension = 384

// SnippetLength caps the plain-text description snippet
const SnippetLength = 200

// MaxTags caps the number of tags kept on a record
const MaxTags = 15

// Job is the canonical aggregated posting from any source.
// Hash is the badgerhold key: md5 of lower(title)|lower(company)|url.
type Job struct {
	Hash    string `json:"hash"`
	Source  string `json:"source" badgerhold:"index" validate:"required"`
	Title   string `json:"title" validate:"required,max=500"`
	Company string `json:"company" validate:"required,max=300"`
	URL     string `json:"url" badgerhold:"index" validate:"required,url,max=2048"`

	Location           string `json:"location,omitempty"`
	Canton             string `json:"canton,omitempty" validate:"omitempty,len=2"`
	Description        string `json:"description,omitempty"`
	DescriptionSnippet string `json:"description_snippet,omitempty" validate:"max=500"`

	SalaryMinCHF   int    `json:"salary_min_chf,omitempty"`
	SalaryMaxCHF   int    `json:"salary_max_chf,omitempty"`
	SalaryOriginal string `json:"salary_original,omitempty"`
	SalaryCurrency string `json:"salary_currency,omitempty" validate:"omitempty,len=3"`
	SalaryPeriod   string `json:"salary_period,omitempty" validate:"omitempty,oneof=yearly monthly hourly"`

	Language     string `json:"language,omitempty" validate:"omitempty,oneof=de fr en it"`
	Seniority    string `json:"seniority,omitempty" validate:"omitempty,oneof=intern junior mid senior lead head director"`
	ContractType string `json:"contract_type,omitempty" validate:"omitempty,oneof=full_time part_time contract internship apprenticeship temporary"`

	Remote         bool     `json:"remote"`
	Tags           []string `json:"tags,omitempty"`
	Logo           string   `json:"logo,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`

	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	IsActive     bool       `json:"is_active" badgerhold:"index"`
	URLLastCheck *time.Time `json:"url_last_check,omitempty"`

	FuzzyHash   string    `json:"fuzzy_hash,omitempty" badgerhold:"index"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`

	// URLFailCount counts consecutive unreachable health checks; reset on success.
	URLFailCount int `json:"url_fail_count,omitempty"`
}

// IsDuplicate reports whether the row has been folded into a canonical record
func (j *Job) IsDuplicate() bool {
	return j.DuplicateOf != ""
}

// HasEmbedding reports whether a full-size embedding vector is present
func (j *Job) HasEmbedding() bool {
	return len(j.Embedding) == EmbeddingDimension
}

// JobStats summarizes the stored corpus for the ops surface
type JobStats struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	Duplicates int            `json:"duplicates"`
	Embedded   int            `json:"embedded"`
	BySource   map[string]int `json:"by_source"`
}
