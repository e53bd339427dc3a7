// Package wiki publishes generated Markdown documents to a Wiki.js-compatible
// service over its GraphQL API, with create-or-update semantics keyed by
// page path.
package wiki

import (
	"regexp"
	"strings"
)

// Meta is the metadata extracted from a document's front-matter block.
type Meta struct {
	Title       string
	Description string
	Tags        []string
}

// ParseFrontMatter splits an optional leading front-matter block
// ("---\n...\n---\n") from the document body. Documents without the block
// return an empty Meta and the whole content as body. Unknown keys are
// ignored; only title, description, and tags are read.
func ParseFrontMatter(content string) (Meta, string) {
	var meta Meta

	rest, found := strings.CutPrefix(content, "---\n")
	if !found {
		return meta, content
	}
	block, body, found := strings.Cut(rest, "\n---\n")
	if !found {
		return meta, content
	}

	for _, line := range strings.Split(block, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "title":
			meta.Title = value
		case "description":
			meta.Description = value
		case "tags":
			meta.Tags = parseTags(value)
		}
	}

	return meta, strings.TrimPrefix(body, "\n")
}

// parseTags reads a front-matter tag list: "[a, b]" or "a, b".
func parseTags(value string) []string {
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")

	var tags []string
	for _, tag := range strings.Split(value, ",") {
		tag = strings.Trim(strings.TrimSpace(tag), `"'`)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// headingRe matches the first H1 heading of a document.
var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// TitleFor resolves a page title: front-matter title, else the first H1
// heading, else the file name with separators replaced by spaces.
func TitleFor(meta Meta, body, fileName string) string {
	if meta.Title != "" {
		return meta.Title
	}
	if m := headingRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	name := strings.TrimSuffix(fileName, ".md")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe    = regexp.MustCompile(`\s+`)
	slugCollapseRe = regexp.MustCompile(`-+`)
)

// Slugify derives a URL path segment from a title: lowercase, punctuation
// stripped, whitespace collapsed to single hyphens, repeated hyphens
// collapsed, leading/trailing hyphens trimmed.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugSpaceRe.ReplaceAllString(slug, "-")
	slug = slugCollapseRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
