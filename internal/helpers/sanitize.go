package helpers

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy

	richTextPolicyOnce sync.Once
	richTextPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// RichTextHTMLPolicy keeps structural markup (paragraphs, headings, lists,
// tables, code blocks) and drops scripts, styles and event handlers.
func RichTextHTMLPolicy() *bluemonday.Policy {
	richTextPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("figure", "figcaption")
		policy.AllowURLSchemes("http", "https", "mailto")
		richTextPolicy = policy
	})
	return richTextPolicy
}

// SanitizeHTMLRichText cleans s using RichTextHTMLPolicy.
func SanitizeHTMLRichText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(RichTextHTMLPolicy().Sanitize(s))
}

// PlainText strips every tag from s, decodes entities and collapses runs of
// whitespace to single spaces.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = html.UnescapeString(StrictHTMLPolicy().Sanitize(s))
	return CollapseSpace(s)
}

// CollapseSpace replaces every whitespace run with one space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LooksEncoded reports whether s carries HTML markup only in entity-encoded
// form, as GLPI stores rich-text ticket content.
func LooksEncoded(s string) bool {
	if strings.Contains(s, "<") {
		return false
	}
	return strings.Contains(s, "&lt;") && strings.Contains(s, "&gt;")
}
