package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/sources/adapter"
)

const (
	joobleSource   = "jooble"
	joobleURLBase  = "https://jooble.org/api/"
	joobleMaxPages = 3
)

type joobleRequest struct {
	Keywords string `json:"keywords"`
	Location string `json:"location"`
	Page     string `json:"page"`
}

type joobleResponse struct {
	TotalCount int         `json:"totalCount"`
	Jobs       []joobleJob `json:"jobs"`
}

type joobleJob struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Link     string `json:"link"`
	Location string `json:"location"`
	Snippet  string `json:"snippet"`
	Salary   string `json:"salary"`
	Type     string `json:"type"`
}

// Jooble fetches from the Jooble aggregator API. POST-based, key in the
// URL path; without a key the adapter stays registered but disabled.
type Jooble struct {
	*adapter.Core
	fetcher *fetcher.Fetcher
	apiURL  string
	apiKey  string
	logger  arbor.ILogger
}

func NewJooble(f *fetcher.Fetcher, apiKey string, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *Jooble {
	return &Jooble{
		Core:    adapter.NewCore(joobleSource, adapter.MethodAPI, breakerCfg, logger),
		fetcher: f,
		apiURL:  joobleURLBase,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Enabled reports whether the API key is configured.
func (p *Jooble) Enabled() bool {
	return p.apiKey != ""
}

func (p *Jooble) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("jooble api key not configured")
	}
	if location == "" {
		location = "Switzerland"
	}

	endpoint := p.apiURL + p.apiKey
	var jobs []*models.Job

	for page := 1; page <= joobleMaxPages; page++ {
		var payload joobleResponse
		err := p.Call(ctx, func(ctx context.Context) error {
			return p.fetcher.FetchJSON(ctx, endpoint, &fetcher.Options{
				Method: "POST",
				Body: joobleRequest{
					Keywords: query,
					Location: location,
					Page:     strconv.Itoa(page),
				},
			}, &payload)
		})
		if err != nil {
			p.RecordError()
			if len(jobs) == 0 {
				return nil, fmt.Errorf("jooble page %d: %w", page, err)
			}
			p.logger.Warn().Err(err).Int("page", page).Msg("Jooble page fetch failed, keeping partial results")
			break
		}

		if len(payload.Jobs) == 0 {
			break
		}
		for _, raw := range payload.Jobs {
			job, err := p.normalize(raw)
			if err != nil {
				p.RecordError()
				continue
			}
			jobs = append(jobs, job)
		}

		if len(jobs) >= payload.TotalCount {
			break
		}
	}

	p.FinishFetch(len(jobs))
	return jobs, nil
}

func (p *Jooble) normalize(raw joobleJob) (*models.Job, error) {
	title := strings.TrimSpace(raw.Title)
	company := strings.TrimSpace(raw.Company)
	link := strings.TrimSpace(raw.Link)
	if title == "" || company == "" || link == "" {
		return nil, fmt.Errorf("record missing title, company or url")
	}

	description := adapter.HTMLToText(raw.Snippet)
	location := strings.TrimSpace(raw.Location)
	if location == "" {
		location = "Switzerland"
	}

	return &models.Job{
		Hash:               dedup.ComputeHash(title, company, link),
		Source:             joobleSource,
		Title:              title,
		Company:            company,
		URL:                link,
		Location:           location,
		Description:        description,
		DescriptionSnippet: adapter.Snippet(description),
		SalaryOriginal:     strings.TrimSpace(raw.Salary),
		EmploymentType:     raw.Type,
	}, nil
}
