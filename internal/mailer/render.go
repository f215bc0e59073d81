package mailer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/secsim/phishportal/internal/models"
)

// variable pattern for template substitution: {{variable_name}}
var varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// RenderVars replaces {{variable}} placeholders with values. Unknown
// placeholders are left as-is.
func RenderVars(template string, data map[string]string) string {
	return varPattern.ReplaceAllStringFunc(template, func(match string) string {
		varName := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := data[varName]; ok {
			return val
		}
		return match
	})
}

// StripTags removes HTML markup, leaving plain text. Used for the text
// part of outgoing emails and for sanitizing plain-text form fields.
func StripTags(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = strings.ReplaceAll(out, "&nbsp;", " ")
	out = strings.ReplaceAll(out, "&amp;", "&")
	out = strings.ReplaceAll(out, "&lt;", "<")
	out = strings.ReplaceAll(out, "&gt;", ">")
	return strings.TrimSpace(out)
}

// RecipientContext builds the placeholder variables for one recipient of
// one campaign, including the tracked click and report URLs.
func RecipientContext(rec *models.Recipient, baseURL, trackingID string) map[string]string {
	fullName := strings.TrimSpace(rec.FirstName + " " + rec.LastName)
	return map[string]string{
		"email":      rec.Email,
		"first_name": rec.FirstName,
		"last_name":  rec.LastName,
		"full_name":  fullName,
		"department": rec.Department,
		"click_url":  fmt.Sprintf("%s/t/%s/click", baseURL, trackingID),
		"report_url": fmt.Sprintf("%s/t/%s/report", baseURL, trackingID),
		"open_url":   fmt.Sprintf("%s/t/%s/open.gif", baseURL, trackingID),
	}
}

// safeName returns a display name for the recipient, falling back to a
// neutral address form when no name is known.
func safeName(ctx map[string]string) string {
	if n := ctx["first_name"]; n != "" {
		return n
	}
	if n := ctx["full_name"]; n != "" {
		return n
	}
	return "Colleague"
}

// Render produces the subject, HTML body and text body for one recipient.
// SCENARIO templates use a built-in layout; CUSTOM templates render the
// stored HTML with placeholder substitution.
func Render(tmpl *models.EmailTemplate, ctx map[string]string) (subject, html, text string) {
	subject = RenderVars(tmpl.Subject, ctx)

	if tmpl.TemplateType == models.TemplateTypeCustom {
		html = RenderVars(tmpl.HTMLContent, ctx)
	} else {
		html = buildScenarioHTML(tmpl, ctx)
	}

	if extra := strings.TrimSpace(RenderVars(tmpl.Body, ctx)); extra != "" && tmpl.TemplateType != models.TemplateTypeCustom {
		html = strings.Replace(html, "<!--extra-->", "<p>"+extra+"</p>", 1)
	}

	text = StripTags(html)
	return subject, html, text
}
