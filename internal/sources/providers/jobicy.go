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
	jobicySource = "jobicy"
	jobicyURL    = "https://jobicy.com/api/v2/remote-jobs"
	jobicyCount  = 50
)

type jobicyResponse struct {
	Jobs []jobicyJob `json:"jobs"`
}

type jobicyJob struct {
	JobTitle       string `json:"jobTitle"`
	CompanyName    string `json:"companyName"`
	CompanyLogo    string `json:"companyLogo"`
	URL            string `json:"url"`
	JobDescription string `json:"jobDescription"`
	JobGeo         string `json:"jobGeo"`
	JobType        string `json:"jobType"`
}

// Jobicy fetches the Jobicy remote-jobs API, filtered by search tag and
// geo when the run targets a specific location.
type Jobicy struct {
	*adapter.Core
	fetcher *fetcher.Fetcher
	apiURL  string
	logger  arbor.ILogger
}

func NewJobicy(f *fetcher.Fetcher, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *Jobicy {
	return &Jobicy{
		Core:    adapter.NewCore(jobicySource, adapter.MethodAPI, breakerCfg, logger),
		fetcher: f,
		apiURL:  jobicyURL,
		logger:  logger,
	}
}

// Enabled is always true; Jobicy needs no credential.
func (p *Jobicy) Enabled() bool {
	return true
}

func (p *Jobicy) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	params := url.Values{"count": {fmt.Sprintf("%d", jobicyCount)}}
	if query != "" {
		params.Set("tag", query)
	}
	if location != "" && !strings.EqualFold(location, "switzerland") {
		params.Set("geo", location)
	}

	var payload jobicyResponse
	err := p.Call(ctx, func(ctx context.Context) error {
		return p.fetcher.FetchJSON(ctx, p.apiURL, &fetcher.Options{Query: params}, &payload)
	})
	if err != nil {
		p.RecordError()
		return nil, fmt.Errorf("jobicy fetch: %w", err)
	}

	var jobs []*models.Job
	for _, raw := range payload.Jobs {
		job, err := p.normalize(raw)
		if err != nil {
			p.RecordError()
			continue
		}
		jobs = append(jobs, job)
	}

	p.FinishFetch(len(jobs))
	return jobs, nil
}

func (p *Jobicy) normalize(raw jobicyJob) (*models.Job, error) {
	title := strings.TrimSpace(raw.JobTitle)
	company := strings.TrimSpace(raw.CompanyName)
	link := strings.TrimSpace(raw.URL)
	if title == "" || company == "" || link == "" {
		return nil, fmt.Errorf("record missing title, company or url")
	}

	description := adapter.HTMLToText(raw.JobDescription)

	return &models.Job{
		Hash:               dedup.ComputeHash(title, company, link),
		Source:             jobicySource,
		Title:              title,
		Company:            company,
		URL:                link,
		Location:           raw.JobGeo,
		Description:        description,
		DescriptionSnippet: adapter.Snippet(description),
		Remote:             true,
		Logo:               raw.CompanyLogo,
		EmploymentType:     raw.JobType,
	}, nil
}
