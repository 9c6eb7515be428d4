package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/breaker"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/sources/adapter"
)

// Config shapes how the engine walks one job board.
type Config struct {
	RateLimit    float64 // Seconds between requests to the board
	MaxPages     int     // Listing pages per run
	PageSize     int     // Expected listings per page; fewer means last page
	NeedsBrowser bool    // Board requires JS rendering
	FetchDetails bool    // Follow each listing to its detail page
}

// Stub is one listing-page entry before the detail visit.
type Stub struct {
	Title          string
	Company        string
	Location       string
	URL            string
	DetailURL      string
	Logo           string
	EmploymentType string
	Description    string
}

// Site is what a concrete board contributes: URLs and parsing. The engine
// owns rate limiting, compliance, the circuit breaker and page walking.
type Site interface {
	Name() string
	Config() Config

	// ListingURL builds the absolute URL for one listing page.
	ListingURL(page int, query string) string

	// ParseListing extracts stubs from a listing page.
	ParseListing(doc *goquery.Document) []*Stub

	// ParseDetail merges detail-page content into the job in place.
	ParseDetail(doc *goquery.Document, job *models.Job)

	// Normalize turns a stub into a job record, or an error to skip it.
	Normalize(stub *Stub) (*models.Job, error)
}

// Scraper runs one Site through the shared scraping engine. It satisfies
// the same adapter contract as the API providers.
type Scraper struct {
	*adapter.Core
	site          Site
	fetcher       *fetcher.Fetcher
	detailFetcher *fetcher.Fetcher
	browser       *browser.Service
	compliance    interfaces.ComplianceService
	limiter       *rate.Limiter
	httpConfig    *common.HTTPConfig
	logger        arbor.ILogger
}

// New wires a site into the engine. browserService may be nil when the
// rendered-fetch path is disabled; sites that need it are then skipped.
func New(site Site, f *fetcher.Fetcher, browserService *browser.Service, compliance interfaces.ComplianceService, httpConfig *common.HTTPConfig, breakerCfg *common.BreakerConfig, logger arbor.ILogger) *Scraper {
	cfg := site.Config()

	interval := time.Duration(cfg.RateLimit * float64(time.Second))
	if interval <= 0 {
		interval = time.Second
	}

	return &Scraper{
		Core:          adapter.NewCore(site.Name(), adapter.MethodScraping, breakerCfg, logger),
		site:          site,
		fetcher:       f,
		detailFetcher: f.WithDetailTimeout(),
		browser:       browserService,
		compliance:    compliance,
		limiter:       rate.NewLimiter(rate.Every(interval), 1),
		httpConfig:    httpConfig,
		logger:        logger,
	}
}

// Enabled reports whether the site can run at all. Browser-dependent sites
// are disabled when the rendered-fetch path is not configured.
func (s *Scraper) Enabled() bool {
	if s.site.Config().NeedsBrowser {
		return s.browser != nil
	}
	return true
}

// FetchJobs walks the board's listing pages. Every request passes the
// compliance gate and the circuit breaker; a 403 or 429 is reported as a
// block and aborts the run with whatever was collected so far.
func (s *Scraper) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	if !s.compliance.CanScrape(ctx, s.Name()) {
		s.logger.Info().
			Str("source", s.Name()).
			Msg("Scraping disabled by compliance, skipping")
		return nil, interfaces.ErrSkipped
	}

	cfg := s.site.Config()
	if cfg.NeedsBrowser && (s.browser == nil || !s.browser.Available()) {
		s.logger.Warn().
			Str("source", s.Name()).
			Msg("Browser rendering unavailable, skipping")
		return nil, interfaces.ErrSkipped
	}

	var jobs []*models.Job
	blocked := false

pages:
	for page := 1; page <= cfg.MaxPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		pageURL := s.site.ListingURL(page, query)
		html, err := s.fetchListing(ctx, pageURL, cfg.NeedsBrowser)
		if err != nil {
			if s.handleBlock(ctx, err, pageURL) {
				blocked = true
				break
			}
			if breaker.IsOpen(err) {
				s.logger.Warn().
					Str("source", s.Name()).
					Msg("Circuit open, aborting run")
				break
			}
			s.RecordError()
			s.logger.Warn().Err(err).
				Str("source", s.Name()).
				Int("page", page).
				Msg("Listing fetch failed, keeping partial results")
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			s.RecordError()
			break
		}

		stubs := s.site.ParseListing(doc)
		if len(stubs) == 0 {
			break
		}

		for _, stub := range stubs {
			job, err := s.site.Normalize(stub)
			if err != nil {
				s.RecordError()
				continue
			}

			if cfg.FetchDetails && stub.DetailURL != "" {
				detailBlocked, err := s.fetchDetail(ctx, stub.DetailURL, job)
				if detailBlocked {
					blocked = true
					jobs = append(jobs, s.finalize(job))
					break pages
				}
				if err != nil {
					s.logger.Debug().Err(err).
						Str("source", s.Name()).
						Str("url", stub.DetailURL).
						Msg("Detail fetch failed, keeping listing data")
				}
			}

			jobs = append(jobs, s.finalize(job))
		}

		if len(stubs) < cfg.PageSize {
			break
		}
	}

	if len(jobs) > 0 && !blocked {
		s.compliance.ResetBlocks(ctx, s.Name())
	}

	s.FinishFetch(len(jobs))
	return jobs, nil
}

// fetchListing retrieves one listing page, rendered or plain.
func (s *Scraper) fetchListing(ctx context.Context, pageURL string, rendered bool) (string, error) {
	var html string
	err := s.Call(ctx, func(ctx context.Context) error {
		var fetchErr error
		if rendered {
			html, fetchErr = s.fetchRendered(ctx, pageURL)
		} else {
			html, fetchErr = s.fetcher.FetchText(ctx, pageURL, s.browserOptions())
		}
		return fetchErr
	})
	return html, err
}

// fetchRendered goes through the headless browser pool and maps non-2xx
// responses onto the same status error the plain path produces.
func (s *Scraper) fetchRendered(ctx context.Context, pageURL string) (string, error) {
	html, status, err := s.browser.FetchRendered(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if status != 0 && (status < 200 || status >= 300) {
		return "", &fetcher.StatusError{StatusCode: status, URL: pageURL}
	}
	return html, nil
}

// fetchDetail visits a detail page and lets the site merge it into job.
// Returns whether the response was a block.
func (s *Scraper) fetchDetail(ctx context.Context, detailURL string, job *models.Job) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var html string
	err := s.Call(ctx, func(ctx context.Context) error {
		var fetchErr error
		html, fetchErr = s.detailFetcher.FetchText(ctx, detailURL, s.browserOptions())
		return fetchErr
	})
	if err != nil {
		if s.handleBlock(ctx, err, detailURL) {
			return true, err
		}
		s.RecordError()
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("failed to parse detail page %s: %w", detailURL, err)
	}

	s.site.ParseDetail(doc, job)
	return false, nil
}

// handleBlock reports 403/429 responses to the compliance service.
func (s *Scraper) handleBlock(ctx context.Context, err error, blockedURL string) bool {
	status, ok := fetcher.StatusCode(err)
	if !ok || (status != http.StatusForbidden && status != http.StatusTooManyRequests) {
		return false
	}

	s.logger.Warn().
		Str("source", s.Name()).
		Str("url", blockedURL).
		Int("status", status).
		Msg("Source blocked the request, aborting run")
	s.compliance.ReportBlock(ctx, s.Name(), status)
	return true
}

// finalize fills the derived fields a site parser leaves open.
func (s *Scraper) finalize(job *models.Job) *models.Job {
	if job.Hash == "" {
		job.Hash = dedup.ComputeHash(job.Title, job.Company, job.URL)
	}
	if job.DescriptionSnippet == "" && job.Description != "" {
		job.DescriptionSnippet = adapter.Snippet(job.Description)
	}
	return job
}

// browserOptions sends browser-like headers on scraper requests.
func (s *Scraper) browserOptions() *fetcher.Options {
	if s.httpConfig.BrowserUA == "" {
		return nil
	}
	return &fetcher.Options{Headers: map[string]string{"User-Agent": s.httpConfig.BrowserUA}}
}

// resolveURL makes a possibly-relative href absolute against a base page.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// cleanText collapses whitespace runs in scraped text.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
