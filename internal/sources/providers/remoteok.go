package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/sources/adapter"
)

const (
	remoteokSource = "remoteok"
	remoteokURL    = "https://remoteok.com/api"

	// remoteokThousands: RemoteOK reports salaries in thousands below this
	remoteokThousands = 1000
)

type remoteokJob struct {
	Position    string      `json:"position"`
	Company     string      `json:"company"`
	Location    string      `json:"location"`
	Description string      `json:"description"`
	Logo        string      `json:"logo"`
	ApplyURL    string      `json:"apply_url"`
	URL         string      `json:"url"`
	Slug        string      `json:"slug"`
	Tags        []string    `json:"tags"`
	SalaryMin   json.Number `json:"salary_min"`
	SalaryMax   json.Number `json:"salary_max"`
}

// RemoteOK fetches the RemoteOK API. Single endpoint; the response is a
// JSON array whose first element is a legal notice, not a job.
type RemoteOK struct {
	*adapter.Core
	fetcher *fetcher.Fetcher
	apiURL  string
	logger  arbor.ILogger
}

func NewRemoteOK(f *fetcher.Fetcher, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *RemoteOK {
	return &RemoteOK{
		Core:    adapter.NewCore(remoteokSource, adapter.MethodAPI, breakerCfg, logger),
		fetcher: f,
		apiURL:  remoteokURL,
		logger:  logger,
	}
}

// Enabled is always true; RemoteOK needs no credential.
func (p *RemoteOK) Enabled() bool {
	return true
}

func (p *RemoteOK) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	var payload []json.RawMessage
	err := p.Call(ctx, func(ctx context.Context) error {
		return p.fetcher.FetchJSON(ctx, p.apiURL, nil, &payload)
	})
	if err != nil {
		p.RecordError()
		return nil, fmt.Errorf("remoteok fetch: %w", err)
	}

	if len(payload) < 2 {
		return nil, nil
	}

	var jobs []*models.Job
	for _, rawMessage := range payload[1:] {
		var raw remoteokJob
		if err := json.Unmarshal(rawMessage, &raw); err != nil {
			p.RecordError()
			continue
		}
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

func (p *RemoteOK) normalize(raw remoteokJob) (*models.Job, error) {
	title := strings.TrimSpace(raw.Position)
	company := strings.TrimSpace(raw.Company)
	if title == "" || company == "" {
		return nil, fmt.Errorf("record missing title or company")
	}

	link := strings.TrimSpace(raw.ApplyURL)
	if link == "" {
		link = strings.TrimSpace(raw.URL)
	}
	if link == "" && raw.Slug != "" {
		link = "https://remoteok.com/remote-jobs/" + raw.Slug
	}
	if link == "" {
		return nil, fmt.Errorf("record missing url")
	}

	description := adapter.HTMLToText(raw.Description)

	salaryMin := remoteokSalary(raw.SalaryMin)
	salaryMax := remoteokSalary(raw.SalaryMax)
	var salaryOriginal, salaryCurrency, salaryPeriod string
	if salaryMin > 0 || salaryMax > 0 {
		var parts []string
		if salaryMin > 0 {
			parts = append(parts, fmt.Sprintf("%d", salaryMin))
		}
		if salaryMax > 0 {
			parts = append(parts, fmt.Sprintf("%d", salaryMax))
		}
		salaryOriginal = strings.Join(parts, "-") + " USD"
		salaryCurrency = "USD"
		salaryPeriod = models.SalaryPeriodYearly
	}

	return &models.Job{
		Hash:               dedup.ComputeHash(title, company, link),
		Source:             remoteokSource,
		Title:              title,
		Company:            company,
		URL:                link,
		Location:           raw.Location,
		Description:        description,
		DescriptionSnippet: adapter.Snippet(description),
		Remote:             true,
		Tags:               adapter.CapTags(raw.Tags),
		Logo:               raw.Logo,
		SalaryOriginal:     salaryOriginal,
		SalaryCurrency:     salaryCurrency,
		SalaryPeriod:       salaryPeriod,
	}, nil
}

// remoteokSalary parses a salary bound, scaling values reported in
// thousands up to full amounts.
func remoteokSalary(n json.Number) int {
	value, err := n.Int64()
	if err != nil || value <= 0 {
		return 0
	}
	if value < remoteokThousands {
		value *= 1000
	}
	return int(value)
}
