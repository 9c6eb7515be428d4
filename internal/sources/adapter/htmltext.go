package adapter

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// HTMLToText converts an HTML fragment (API descriptions are usually HTML)
// to markdown text for Job.Description. Plain text passes through.
func HTMLToText(html string) string {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" || !strings.Contains(trimmed, "<") {
		return trimmed
	}

	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(trimmed)
	if err != nil {
		return trimmed
	}
	return strings.TrimSpace(text)
}
