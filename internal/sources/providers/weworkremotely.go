package providers

import (
	"context"
	"encoding/xml"
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
	wwrSource = "weworkremotely"
	wwrURL    = "https://weworkremotely.com/remote-jobs.rss"
)

type wwrFeed struct {
	Channel struct {
		Items []wwrItem `xml:"item"`
	} `xml:"channel"`
}

type wwrItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Region      string `xml:"region"`
	Type        string `xml:"type"`
	Media       struct {
		URL string `xml:"url,attr"`
	} `xml:"http://search.yahoo.com/mrss/ content"`
}

// WeWorkRemotely fetches the We Work Remotely RSS feed. Item titles
// arrive as "Company: Job Title"; the query filters client-side since the
// feed has no search parameter.
type WeWorkRemotely struct {
	*adapter.Core
	fetcher *fetcher.Fetcher
	feedURL string
	logger  arbor.ILogger
}

func NewWeWorkRemotely(f *fetcher.Fetcher, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *WeWorkRemotely {
	return &WeWorkRemotely{
		Core:    adapter.NewCore(wwrSource, adapter.MethodAPI, breakerCfg, logger),
		fetcher: f,
		feedURL: wwrURL,
		logger:  logger,
	}
}

// Enabled is always true; the feed is public.
func (p *WeWorkRemotely) Enabled() bool {
	return true
}

func (p *WeWorkRemotely) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	var body string
	err := p.Call(ctx, func(ctx context.Context) error {
		var fetchErr error
		body, fetchErr = p.fetcher.FetchText(ctx, p.feedURL, nil)
		return fetchErr
	})
	if err != nil {
		p.RecordError()
		return nil, fmt.Errorf("weworkremotely fetch: %w", err)
	}

	var feed wwrFeed
	if err := xml.Unmarshal([]byte(body), &feed); err != nil {
		p.RecordError()
		return nil, fmt.Errorf("weworkremotely feed parse: %w", err)
	}

	var jobs []*models.Job
	for _, item := range feed.Channel.Items {
		job, err := p.normalize(item)
		if err != nil {
			p.RecordError()
			continue
		}
		if query != "" && !matchesQuery(job, query) {
			continue
		}
		jobs = append(jobs, job)
	}

	p.FinishFetch(len(jobs))
	return jobs, nil
}

func (p *WeWorkRemotely) normalize(item wwrItem) (*models.Job, error) {
	fullTitle := strings.TrimSpace(item.Title)
	var company, title string
	if idx := strings.Index(fullTitle, ": "); idx > 0 {
		company = fullTitle[:idx]
		title = fullTitle[idx+2:]
	} else {
		title = fullTitle
	}
	if title == "" || company == "" {
		return nil, fmt.Errorf("item title %q not in Company: Title form", fullTitle)
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return nil, fmt.Errorf("item missing link")
	}

	description := adapter.HTMLToText(item.Description)

	location := strings.TrimSpace(item.Region)
	if location == "" {
		location = "Remote / Worldwide"
	}

	return &models.Job{
		Hash:               dedup.ComputeHash(title, company, link),
		Source:             wwrSource,
		Title:              title,
		Company:            company,
		URL:                link,
		Location:           location,
		Description:        description,
		DescriptionSnippet: adapter.Snippet(description),
		Remote:             true,
		Logo:               item.Media.URL,
		EmploymentType:     strings.TrimSpace(item.Type),
	}, nil
}

func matchesQuery(job *models.Job, query string) bool {
	haystack := strings.ToLower(job.Title + " " + job.Company + " " + job.Description)
	return strings.Contains(haystack, strings.ToLower(query))
}
