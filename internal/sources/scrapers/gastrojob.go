package scrapers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/models"
)

const (
	gastrojobSource  = "gastrojob"
	gastrojobBase    = "https://www.gastrojob.ch"
	gastrojobListing = gastrojobBase + "/stellen"
)

// gastrojobCardSelectors are tried in order; the board is a TYPO3 site
// whose markup has shifted between common listing patterns.
var gastrojobCardSelectors = []string{
	".job-item",
	".job-list-item",
	".stellenangebot",
	"article.job",
	".teaser-job",
	".list-group-item",
}

// gastrojobLinkPatterns identify detail links when no card selector matches.
var gastrojobLinkPatterns = []string{"/stelle/", "/job/", "/detail/"}

// Gastrojob scrapes Gastrojob.ch, hospitality and gastronomy jobs.
type Gastrojob struct{}

func NewGastrojob() *Gastrojob {
	return &Gastrojob{}
}

func (g *Gastrojob) Name() string {
	return gastrojobSource
}

func (g *Gastrojob) Config() Config {
	return Config{
		RateLimit:    2.0,
		MaxPages:     5,
		PageSize:     20,
		FetchDetails: true,
	}
}

func (g *Gastrojob) ListingURL(page int, query string) string {
	if page == 1 {
		return gastrojobListing
	}
	return fmt.Sprintf("%s?page=%d", gastrojobListing, page)
}

func (g *Gastrojob) ParseListing(doc *goquery.Document) []*Stub {
	for _, selector := range gastrojobCardSelectors {
		records := doc.Find(selector)
		if records.Length() > 0 {
			return g.parseCards(records)
		}
	}
	return g.parseLinkFallback(doc)
}

func (g *Gastrojob) parseCards(records *goquery.Selection) []*Stub {
	var stubs []*Stub

	records.Each(func(_ int, record *goquery.Selection) {
		title := cleanText(record.Find("h2, h3, h4, .title, a").First().Text())
		if title == "" {
			return
		}

		href, _ := record.Find("a[href]").First().Attr("href")
		detailURL := resolveURL(gastrojobBase, href)
		if detailURL == "" {
			return
		}

		company := cleanText(record.Find(".company, .employer, .firma").First().Text())
		if company == "" {
			company = "Unknown"
		}

		stubs = append(stubs, &Stub{
			Title:     title,
			Company:   company,
			Location:  cleanText(record.Find(".location, .ort, .region").First().Text()),
			URL:       detailURL,
			DetailURL: detailURL,
		})
	})

	return stubs
}

// parseLinkFallback harvests anchors whose href looks like a detail page.
func (g *Gastrojob) parseLinkFallback(doc *goquery.Document) []*Stub {
	var stubs []*Stub

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		text := cleanText(link.Text())
		if text == "" || len(text) <= 10 {
			return
		}

		for _, pattern := range gastrojobLinkPatterns {
			if strings.Contains(href, pattern) {
				detailURL := resolveURL(gastrojobBase, href)
				stubs = append(stubs, &Stub{
					Title:     text,
					Company:   "Unknown",
					URL:       detailURL,
					DetailURL: detailURL,
				})
				return
			}
		}
	})

	return stubs
}

func (g *Gastrojob) ParseDetail(doc *goquery.Document, job *models.Job) {
	for _, selector := range []string{".job-detail", ".stellenbeschreibung", "article", ".content"} {
		if desc := strings.TrimSpace(doc.Find(selector).First().Text()); desc != "" {
			job.Description = desc
			break
		}
	}

	if company := cleanText(doc.Find(".company-name, .arbeitgeber, h2.company").First().Text()); company != "" {
		job.Company = company
	}
	if location := cleanText(doc.Find(".arbeitsort, .location").First().Text()); location != "" {
		job.Location = location
	}
}

func (g *Gastrojob) Normalize(stub *Stub) (*models.Job, error) {
	if stub.Title == "" || stub.URL == "" {
		return nil, fmt.Errorf("listing card missing title or url")
	}

	location := stub.Location
	if location == "" {
		location = "Switzerland"
	}

	return &models.Job{
		Source:   gastrojobSource,
		Title:    stub.Title,
		Company:  stub.Company,
		URL:      stub.URL,
		Location: location,
	}, nil
}
