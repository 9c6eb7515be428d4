package scrapers

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/models"
)

const (
	zentraljobSource  = "zentraljob"
	zentraljobBase    = "https://www.zentraljob.ch"
	zentraljobListing = zentraljobBase + "/jobs"
)

// Zentraljob scrapes Zentraljob.ch, the central-Switzerland job portal.
// The listing is rendered client-side, so this site goes through the
// browser pool and takes everything from the listing cards, no detail
// visits.
type Zentraljob struct{}

func NewZentraljob() *Zentraljob {
	return &Zentraljob{}
}

func (z *Zentraljob) Name() string {
	return zentraljobSource
}

func (z *Zentraljob) Config() Config {
	return Config{
		RateLimit:    3.0,
		MaxPages:     3,
		PageSize:     20,
		NeedsBrowser: true,
	}
}

func (z *Zentraljob) ListingURL(page int, query string) string {
	if page == 1 {
		return zentraljobListing
	}
	return fmt.Sprintf("%s?page=%d", zentraljobListing, page)
}

func (z *Zentraljob) ParseListing(doc *goquery.Document) []*Stub {
	var stubs []*Stub

	doc.Find(".job-teaser, .search-result-item, article.vacancy").Each(func(_ int, record *goquery.Selection) {
		title := cleanText(record.Find("h2, h3, .job-title").First().Text())
		if title == "" {
			return
		}

		href, _ := record.Find("a[href]").First().Attr("href")
		listingURL := resolveURL(zentraljobBase, href)
		if listingURL == "" {
			return
		}

		company := cleanText(record.Find(".company, .employer").First().Text())
		if company == "" {
			company = "Unknown"
		}

		stubs = append(stubs, &Stub{
			Title:          title,
			Company:        company,
			Location:       cleanText(record.Find(".location, .ort").First().Text()),
			URL:            listingURL,
			EmploymentType: cleanText(record.Find(".pensum, .workload").First().Text()),
			Description:    cleanText(record.Find(".teaser-text, .description").First().Text()),
		})
	})

	return stubs
}

// ParseDetail is a no-op; everything comes from the listing cards.
func (z *Zentraljob) ParseDetail(doc *goquery.Document, job *models.Job) {}

func (z *Zentraljob) Normalize(stub *Stub) (*models.Job, error) {
	if stub.Title == "" || stub.URL == "" {
		return nil, fmt.Errorf("listing card missing title or url")
	}

	location := stub.Location
	if location == "" {
		location = "Zentralschweiz"
	}

	return &models.Job{
		Source:         zentraljobSource,
		Title:          stub.Title,
		Company:        stub.Company,
		URL:            stub.URL,
		Location:       location,
		Description:    stub.Description,
		EmploymentType: stub.EmploymentType,
	}, nil
}
