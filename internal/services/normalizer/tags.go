package normalizer

import (
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// techKeywords are scanned against title+description. More specific
// spellings come before their substrings (javascript before java) so both
// land as tags in one pass.
var techKeywords = []string{
	"python", "javascript", "typescript", "java", "golang", "rust", "c++", "c#",
	"php", "ruby", "swift", "kotlin", "scala", "sql", "html", "css",
	"react", "angular", "vue", "svelte", "node.js", "django", "flask",
	"spring", "laravel", ".net", "rails",
	"kubernetes", "docker", "terraform", "ansible", "jenkins", "ci/cd",
	"aws", "azure", "gcp", "cloud",
	"postgresql", "mysql", "mongodb", "redis", "elasticsearch", "kafka",
	"spark", "hadoop", "snowflake", "databricks",
	"machine learning", "deep learning", "data science", "nlp", "computer vision",
	"devops", "linux", "git", "agile", "scrum",
	"sap", "salesforce", "tableau", "power bi", "etl",
	"rest", "graphql", "grpc", "microservices", "api",
	"security", "blockchain", "embedded", "ios", "android",
}

// extractTags collects tech keywords found in the text, in keyword order.
func extractTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
			if len(tags) >= models.MaxTags {
				break
			}
		}
	}
	return tags
}

// mergeTags keeps adapter-provided tags first and fills the remainder with
// extracted ones, deduplicated case-insensitively, capped at MaxTags.
func mergeTags(existing, extracted []string) []string {
	if len(existing) == 0 && len(extracted) == 0 {
		return existing
	}

	seen := make(map[string]bool, len(existing)+len(extracted))
	merged := make([]string, 0, models.MaxTags)

	for _, lists := range [][]string{existing, extracted} {
		for _, tag := range lists {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, tag)
			if len(merged) >= models.MaxTags {
				return merged
			}
		}
	}
	return merged
}
