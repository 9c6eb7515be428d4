package scrapers

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/models"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("Failed to parse test HTML: %v", err)
	}
	return doc
}

func TestMyScienceParseListing(t *testing.T) {
	html := `<html><body><div id="results_table">
	  <div itemscope>
	    <a href="/jobs/id12345-postdoc"><span class="results_title">Postdoc in Machine Learning</span></a>
	    <span class="results_organization">ETH Zürich</span>
	    <span class="location">Zürich</span>
	    <div class="centered_logo"><img src="/logos/eth.png"></div>
	  </div>
	  <div itemscope>
	    <a href="https://www.myscience.ch/jobs/id678"><span class="results_title">Lab Technician</span></a>
	    <span class="results_organization">Universität Bern</span>
	    <span class="location">Bern</span>
	  </div>
	  <div itemscope><span class="results_title"></span></div>
	</div></body></html>`

	site := NewMyScience()
	stubs := site.ParseListing(parseDoc(t, html))

	if len(stubs) != 2 {
		t.Fatalf("Expected 2 stubs, the titleless card skipped, got %d", len(stubs))
	}

	first := stubs[0]
	if first.Title != "Postdoc in Machine Learning" || first.Company != "ETH Zürich" {
		t.Errorf("Unexpected stub: %+v", first)
	}
	if first.DetailURL != "https://www.myscience.ch/jobs/id12345-postdoc" {
		t.Errorf("Expected relative href resolved, got %q", first.DetailURL)
	}
	if first.Logo != "https://www.myscience.ch/logos/eth.png" {
		t.Errorf("Expected logo resolved, got %q", first.Logo)
	}
	if stubs[1].DetailURL != "https://www.myscience.ch/jobs/id678" {
		t.Errorf("Expected absolute href kept, got %q", stubs[1].DetailURL)
	}
}

func TestMyScienceParseDetail(t *testing.T) {
	html := `<html><body><div id="middle_content"><div id="results_table">
	  <div id="Description">We are looking for a postdoctoral researcher.</div>
	  <div class="long_value_row"><span class="descriptor">Workplace</span><span class="long_value">Lausanne</span></div>
	  <div class="long_value_row"><span class="descriptor">Pensum</span><span class="long_value">80-100%</span></div>
	  <div class="long_value_row"><span class="descriptor">Deadline</span><span class="long_value">31.12.2026</span></div>
	</div></div></body></html>`

	job := &models.Job{Location: "Zürich"}
	NewMyScience().ParseDetail(parseDoc(t, html), job)

	if job.Description != "We are looking for a postdoctoral researcher." {
		t.Errorf("Unexpected description %q", job.Description)
	}
	if job.Location != "Lausanne" {
		t.Errorf("Expected workplace row to override location, got %q", job.Location)
	}
	if job.EmploymentType != "80-100%" {
		t.Errorf("Expected pensum row mapped, got %q", job.EmploymentType)
	}
}

func TestGastrojobParseListingCards(t *testing.T) {
	html := `<html><body>
	  <div class="job-item">
	    <h3>Chef de Partie</h3>
	    <a href="/stelle/chef-de-partie-123"></a>
	    <span class="company">Grand Hotel</span>
	    <span class="ort">Luzern</span>
	  </div>
	</body></html>`

	stubs := NewGastrojob().ParseListing(parseDoc(t, html))
	if len(stubs) != 1 {
		t.Fatalf("Expected 1 stub, got %d", len(stubs))
	}
	stub := stubs[0]
	if stub.Title != "Chef de Partie" || stub.Company != "Grand Hotel" || stub.Location != "Luzern" {
		t.Errorf("Unexpected stub: %+v", stub)
	}
	if stub.DetailURL != "https://www.gastrojob.ch/stelle/chef-de-partie-123" {
		t.Errorf("Unexpected detail URL %q", stub.DetailURL)
	}
}

func TestGastrojobParseListingLinkFallback(t *testing.T) {
	html := `<html><body>
	  <a href="/stelle/sous-chef-restaurant-seeblick-456">Sous Chef im Restaurant Seeblick</a>
	  <a href="/ueber-uns">Über uns</a>
	  <a href="/job/99">short</a>
	</body></html>`

	stubs := NewGastrojob().ParseListing(parseDoc(t, html))
	if len(stubs) != 1 {
		t.Fatalf("Expected only the long job-pattern link, got %d stubs", len(stubs))
	}
	if stubs[0].Title != "Sous Chef im Restaurant Seeblick" {
		t.Errorf("Unexpected title %q", stubs[0].Title)
	}
	if stubs[0].Company != "Unknown" {
		t.Errorf("Expected Unknown company in fallback, got %q", stubs[0].Company)
	}
}

func TestGastrojobParseDetail(t *testing.T) {
	html := `<html><body>
	  <div class="stellenbeschreibung">Wir suchen eine motivierte Fachkraft.</div>
	  <span class="arbeitgeber">Gasthaus Adler</span>
	  <span class="arbeitsort">Zug</span>
	</body></html>`

	job := &models.Job{Company: "Unknown"}
	NewGastrojob().ParseDetail(parseDoc(t, html), job)

	if job.Description != "Wir suchen eine motivierte Fachkraft." {
		t.Errorf("Unexpected description %q", job.Description)
	}
	if job.Company != "Gasthaus Adler" {
		t.Errorf("Expected company from detail, got %q", job.Company)
	}
	if job.Location != "Zug" {
		t.Errorf("Expected location from detail, got %q", job.Location)
	}
}

func TestZentraljobParseListing(t *testing.T) {
	html := `<html><body>
	  <div class="job-teaser">
	    <h2>Polymechaniker EFZ</h2>
	    <a href="/jobs/polymechaniker-789"></a>
	    <span class="company">Maschinenbau AG</span>
	    <span class="ort">Luzern</span>
	    <span class="pensum">100%</span>
	    <div class="teaser-text">Fertigung von Präzisionsteilen.</div>
	  </div>
	</body></html>`

	stubs := NewZentraljob().ParseListing(parseDoc(t, html))
	if len(stubs) != 1 {
		t.Fatalf("Expected 1 stub, got %d", len(stubs))
	}
	stub := stubs[0]
	if stub.EmploymentType != "100%" {
		t.Errorf("Expected pensum captured, got %q", stub.EmploymentType)
	}
	if stub.Description == "" {
		t.Error("Expected teaser text captured")
	}

	job, err := NewZentraljob().Normalize(stub)
	if err != nil {
		t.Fatalf("Expected normalize success, got %v", err)
	}
	if job.Source != "zentraljob" || job.Location != "Luzern" {
		t.Errorf("Unexpected job: %+v", job)
	}
}

func TestSiteNormalizeRejectsEmptyTitle(t *testing.T) {
	sites := []Site{NewMyScience(), NewGastrojob(), NewZentraljob()}
	for _, site := range sites {
		if _, err := site.Normalize(&Stub{URL: "https://example.com"}); err == nil {
			t.Errorf("%s: expected error for empty title", site.Name())
		}
	}
}
