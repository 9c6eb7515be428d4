package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/sources/adapter"
)

const (
	arbeitnowSource   = "arbeitnow"
	arbeitnowURL      = "https://www.arbeitnow.com/api/job-board-api"
	arbeitnowMaxPages = 3
	// arbeitnowPageDelay keeps a polite gap between listing pages
	arbeitnowPageDelay = 500 * time.Millisecond
)

type arbeitnowResponse struct {
	Data []arbeitnowJob `json:"data"`
}

type arbeitnowJob struct {
	Title       string   `json:"title"`
	CompanyName string   `json:"company_name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Remote      bool     `json:"remote"`
	Tags        []string `json:"tags"`
	JobTypes    []string `json:"job_types"`
}

// Arbeitnow fetches from the Arbeitnow job board API, paginating up to
// three pages.
type Arbeitnow struct {
	*adapter.Core
	fetcher *fetcher.Fetcher
	apiURL  string
	logger  arbor.ILogger
}

func NewArbeitnow(f *fetcher.Fetcher, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *Arbeitnow {
	return &Arbeitnow{
		Core:    adapter.NewCore(arbeitnowSource, adapter.MethodAPI, breakerCfg, logger),
		fetcher: f,
		apiURL:  arbeitnowURL,
		logger:  logger,
	}
}

// Enabled is always true; Arbeitnow needs no credential.
func (p *Arbeitnow) Enabled() bool {
	return true
}

func (p *Arbeitnow) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	var jobs []*models.Job

	for page := 1; page <= arbeitnowMaxPages; page++ {
		var payload arbeitnowResponse
		err := p.Call(ctx, func(ctx context.Context) error {
			return p.fetcher.FetchJSON(ctx, p.apiURL, &fetcher.Options{
				Query: url.Values{"page": {strconv.Itoa(page)}},
			}, &payload)
		})
		if err != nil {
			p.RecordError()
			if len(jobs) == 0 {
				return nil, fmt.Errorf("arbeitnow page %d: %w", page, err)
			}
			p.logger.Warn().Err(err).Int("page", page).Msg("Arbeitnow page fetch failed, keeping partial results")
			break
		}

		if len(payload.Data) == 0 {
			break
		}
		for _, raw := range payload.Data {
			job, err := p.normalize(raw)
			if err != nil {
				p.RecordError()
				p.logger.Warn().Err(err).Str("source", arbeitnowSource).Msg("Skipping malformed record")
				continue
			}
			jobs = append(jobs, job)
		}

		if page < arbeitnowMaxPages {
			select {
			case <-ctx.Done():
				p.FinishFetch(len(jobs))
				return jobs, nil
			case <-time.After(arbeitnowPageDelay):
			}
		}
	}

	p.FinishFetch(len(jobs))
	return jobs, nil
}

func (p *Arbeitnow) normalize(raw arbeitnowJob) (*models.Job, error) {
	title := strings.TrimSpace(raw.Title)
	company := strings.TrimSpace(raw.CompanyName)
	link := strings.TrimSpace(raw.URL)
	if title == "" || company == "" || link == "" {
		return nil, fmt.Errorf("record missing title, company or url")
	}

	description := adapter.HTMLToText(raw.Description)

	return &models.Job{
		Hash:               dedup.ComputeHash(title, company, link),
		Source:             arbeitnowSource,
		Title:              title,
		Company:            company,
		URL:                link,
		Location:           raw.Location,
		Description:        description,
		DescriptionSnippet: adapter.Snippet(description),
		Remote:             raw.Remote,
		Tags:               adapter.CapTags(raw.Tags),
		EmploymentType:     strings.Join(raw.JobTypes, ", "),
	}, nil
}
