package scheduler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cantalab/leadflow/utils"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderPlaceholders substitutes {{field}} with attrs[field].
// Missing fields render empty and {{nombre}} keeps only the first word.
func RenderPlaceholders(template string, attrs map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		field := placeholderPattern.FindStringSubmatch(match)[1]
		value := attrs[field]
		if field == "nombre" {
			return utils.FirstWord(value)
		}
		return value
	})
}

var uriComponentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes s the way browsers do for a single query value
func encodeURIComponent(s string) string {
	return uriComponentUnescaper.Replace(url.QueryEscape(s))
}

var newlinePattern = regexp.MustCompile(`\r?\n`)

// RenderForm fills a form link template. Only the first {{telefono}} and the first
// {{nombre}} are replaced; the name is URL-encoded in full.
func RenderForm(template, phoneDigits, fullName string) string {
	text := strings.Replace(template, "{{telefono}}", phoneDigits, 1)
	text = strings.Replace(text, "{{nombre}}", encodeURIComponent(fullName), 1)
	text = newlinePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
