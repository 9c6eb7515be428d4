package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/sources/adapter"
)

const (
	adzunaSource      = "adzuna"
	adzunaURLBase     = "https://api.adzuna.com/v1/api/jobs"
	adzunaCountry     = "ch"
	adzunaMaxPages    = 2
	adzunaPerPage     = 50
)

type adzunaResponse struct {
	Results []adzunaJob `json:"results"`
}

type adzunaJob struct {
	Title       string `json:"title"`
	RedirectURL string `json:"redirect_url"`
	Description string `json:"description"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		Area        []string `json:"area"`
		DisplayName string   `json:"display_name"`
	} `json:"location"`
	Category struct {
		Label string `json:"label"`
	} `json:"category"`
	ContractType string  `json:"contract_type"`
	ContractTime string  `json:"contract_time"`
	SalaryMin    float64 `json:"salary_min"`
	SalaryMax    float64 `json:"salary_max"`
}

// Adzuna fetches from the Adzuna API Switzerland endpoint. Requires an
// app ID and key; without them the adapter stays registered but disabled.
type Adzuna struct {
	*adapter.Core
	fetcher *fetcher.Fetcher
	apiBase string
	appID   string
	appKey  string
	logger  arbor.ILogger
}

func NewAdzuna(f *fetcher.Fetcher, appID, appKey string, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *Adzuna {
	return &Adzuna{
		Core:    adapter.NewCore(adzunaSource, adapter.MethodAPI, breakerCfg, logger),
		fetcher: f,
		apiBase: adzunaURLBase,
		appID:   appID,
		appKey:  appKey,
		logger:  logger,
	}
}

// Enabled reports whether both credentials are configured.
func (p *Adzuna) Enabled() bool {
	return p.appID != "" && p.appKey != ""
}

func (p *Adzuna) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("adzuna credentials not configured")
	}
	if query == "" {
		query = "software developer"
	}

	var jobs []*models.Job
	for page := 1; page <= adzunaMaxPages; page++ {
		endpoint := fmt.Sprintf("%s/%s/search/%d", p.apiBase, adzunaCountry, page)

		var payload adzunaResponse
		err := p.Call(ctx, func(ctx context.Context) error {
			return p.fetcher.FetchJSON(ctx, endpoint, &fetcher.Options{
				Query: url.Values{
					"app_id":           {p.appID},
					"app_key":          {p.appKey},
					"results_per_page": {fmt.Sprintf("%d", adzunaPerPage)},
					"what":             {query},
				},
			}, &payload)
		})
		if err != nil {
			p.RecordError()
			if len(jobs) == 0 {
				return nil, fmt.Errorf("adzuna page %d: %w", page, err)
			}
			p.logger.Warn().Err(err).Int("page", page).Msg("Adzuna page fetch failed, keeping partial results")
			break
		}

		if len(payload.Results) == 0 {
			break
		}
		for _, raw := range payload.Results {
			job, err := p.normalize(raw)
			if err != nil {
				p.RecordError()
				continue
			}
			jobs = append(jobs, job)
		}
	}

	p.FinishFetch(len(jobs))
	return jobs, nil
}

func (p *Adzuna) normalize(raw adzunaJob) (*models.Job, error) {
	title := strings.TrimSpace(adapter.HTMLToText(raw.Title))
	company := strings.TrimSpace(raw.Company.DisplayName)
	link := strings.TrimSpace(raw.RedirectURL)
	if title == "" || company == "" || link == "" {
		return nil, fmt.Errorf("record missing title, company or url")
	}

	description := adapter.HTMLToText(raw.Description)

	// Prefer the most specific area entry over the display name
	location := raw.Location.DisplayName
	if len(raw.Location.Area) > 0 {
		location = raw.Location.Area[len(raw.Location.Area)-1]
	}

	// Adzuna reports numeric salary bounds; keep them as the original
	// string so the normalizer parses and converts uniformly.
	var salaryOriginal string
	if raw.SalaryMin > 0 || raw.SalaryMax > 0 {
		var parts []string
		if raw.SalaryMin > 0 {
			parts = append(parts, fmt.Sprintf("%d", int(raw.SalaryMin)))
		}
		if raw.SalaryMax > 0 {
			parts = append(parts, fmt.Sprintf("%d", int(raw.SalaryMax)))
		}
		salaryOriginal = strings.Join(parts, "-") + " CHF"
	}

	contract := raw.ContractType
	if contract == "" {
		contract = raw.ContractTime
	}

	return &models.Job{
		Hash:               dedup.ComputeHash(title, company, link),
		Source:             adzunaSource,
		Title:              title,
		Company:            company,
		URL:                link,
		Location:           location,
		Description:        description,
		DescriptionSnippet: adapter.Snippet(description),
		SalaryOriginal:     salaryOriginal,
		SalaryPeriod:       salaryPeriodFor(salaryOriginal),
		ContractType:       normalizeAdzunaContract(contract),
		EmploymentType:     raw.Category.Label,
	}, nil
}

func salaryPeriodFor(salaryOriginal string) string {
	if salaryOriginal == "" {
		return ""
	}
	return models.SalaryPeriodYearly
}

// normalizeAdzunaContract maps Adzuna's contract vocabulary onto the
// model enum; unknown values are left for the normalizer to infer.
func normalizeAdzunaContract(contract string) string {
	switch contract {
	case "full_time", "permanent":
		return models.ContractFullTime
	case "part_time":
		return models.ContractPartTime
	case "contract":
		return models.ContractContract
	}
	return ""
}
