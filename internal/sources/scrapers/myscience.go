package scrapers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/models"
)

const (
	myscienceSource  = "myscience"
	myscienceBase    = "https://www.myscience.ch"
	myscienceListing = myscienceBase + "/jobs"
)

// MyScience scrapes myScience.ch, the Swiss science and academia job board.
// Listing cards are schema.org JobPosting divs; the detail page carries the
// full description and metadata rows.
type MyScience struct{}

func NewMyScience() *MyScience {
	return &MyScience{}
}

func (m *MyScience) Name() string {
	return myscienceSource
}

func (m *MyScience) Config() Config {
	return Config{
		RateLimit:    2.0,
		MaxPages:     5,
		PageSize:     20,
		FetchDetails: true,
	}
}

func (m *MyScience) ListingURL(page int, query string) string {
	return fmt.Sprintf("%s?p=%d", myscienceListing, page)
}

func (m *MyScience) ParseListing(doc *goquery.Document) []*Stub {
	var stubs []*Stub

	doc.Find("#results_table div[itemscope]").Each(func(_ int, record *goquery.Selection) {
		title := cleanText(record.Find(".results_title").Text())
		if title == "" {
			return
		}

		href, _ := record.Find("a[href]").First().Attr("href")
		detailURL := resolveURL(myscienceBase, href)

		company := cleanText(record.Find(".results_organization").Text())
		if company == "" {
			company = "Unknown"
		}

		stub := &Stub{
			Title:     title,
			Company:   company,
			Location:  cleanText(record.Find(".location").Text()),
			URL:       detailURL,
			DetailURL: detailURL,
		}
		if src, ok := record.Find(".centered_logo img").Attr("src"); ok {
			stub.Logo = resolveURL(myscienceBase, src)
		}

		stubs = append(stubs, stub)
	})

	return stubs
}

func (m *MyScience) ParseDetail(doc *goquery.Document, job *models.Job) {
	container := doc.Find("#middle_content #results_table")
	if container.Length() == 0 {
		container = doc.Find("#middle_content")
	}
	if container.Length() == 0 {
		return
	}

	if desc := strings.TrimSpace(container.Find("#Description").Text()); desc != "" {
		job.Description = desc
	}

	if src, ok := container.Find(".centered_logo img").Attr("src"); ok && job.Logo == "" {
		job.Logo = resolveURL(myscienceBase, src)
	}

	container.Find(".long_value_row").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(cleanText(row.Find(".descriptor").Text()))
		value := cleanText(row.Find(".long_value").Text())
		if label == "" || value == "" {
			return
		}

		switch {
		case strings.Contains(label, "workplace"), strings.Contains(label, "arbeitsort"):
			job.Location = value
		case strings.Contains(label, "occupation"),
			strings.Contains(label, "pensum"),
			strings.Contains(label, "funktion"):
			job.EmploymentType = value
		}
	})
}

func (m *MyScience) Normalize(stub *Stub) (*models.Job, error) {
	if stub.Title == "" || stub.URL == "" {
		return nil, fmt.Errorf("listing card missing title or url")
	}

	location := stub.Location
	if location == "" {
		location = "Switzerland"
	}

	return &models.Job{
		Source:   myscienceSource,
		Title:    stub.Title,
		Company:  stub.Company,
		URL:      stub.URL,
		Location: location,
		Logo:     stub.Logo,
	}, nil
}
