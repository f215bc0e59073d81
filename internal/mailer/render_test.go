package mailer

import (
	"strings"
	"testing"

	"github.com/secsim/phishportal/internal/models"
)

func TestRenderVars(t *testing.T) {
	data := map[string]string{"first_name": "Ann", "department": "IT"}

	got := RenderVars("Hello {{first_name}} from {{department}}", data)
	if got != "Hello Ann from IT" {
		t.Errorf("RenderVars = %q", got)
	}

	// unknown placeholders stay verbatim
	got = RenderVars("Hi {{unknown}}", data)
	if got != "Hi {{unknown}}" {
		t.Errorf("RenderVars = %q, unknown placeholder must survive", got)
	}

	// whitespace inside braces is tolerated
	got = RenderVars("{{ first_name }}", data)
	if got != "Ann" {
		t.Errorf("RenderVars = %q, want Ann", got)
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags("<p>Hello <b>world</b> &amp; friends</p>")
	if got != "Hello world & friends" {
		t.Errorf("StripTags = %q", got)
	}
}

func TestRecipientContext(t *testing.T) {
	rec := &models.Recipient{
		Email:      "a@x.com",
		FirstName:  "Ann",
		LastName:   "Ames",
		Department: "IT",
	}
	ctx := RecipientContext(rec, "https://portal.example.com", "track-123")

	if ctx["full_name"] != "Ann Ames" {
		t.Errorf("full_name = %q", ctx["full_name"])
	}
	if ctx["click_url"] != "https://portal.example.com/t/track-123/click" {
		t.Errorf("click_url = %q", ctx["click_url"])
	}
	if ctx["report_url"] != "https://portal.example.com/t/track-123/report" {
		t.Errorf("report_url = %q", ctx["report_url"])
	}
	if ctx["open_url"] != "https://portal.example.com/t/track-123/open.gif" {
		t.Errorf("open_url = %q", ctx["open_url"])
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	tmpl := &models.EmailTemplate{
		Subject:      "Action required, {{first_name}}",
		TemplateType: models.TemplateTypeCustom,
		HTMLContent:  `<p>Dear {{first_name}},</p><p><a href="{{click_url}}">Verify now</a></p>`,
	}
	ctx := map[string]string{
		"first_name": "Ann",
		"click_url":  "https://portal.example.com/t/x/click",
	}

	subject, html, text := Render(tmpl, ctx)
	if subject != "Action required, Ann" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(html, "Dear Ann,") {
		t.Errorf("html missing substitution: %q", html)
	}
	if !strings.Contains(html, "https://portal.example.com/t/x/click") {
		t.Errorf("html missing click url: %q", html)
	}
	if strings.Contains(text, "<a") {
		t.Errorf("text part contains markup: %q", text)
	}
}

func TestRenderScenarioTemplate(t *testing.T) {
	rec := &models.Recipient{Email: "a@x.com", FirstName: "Ann"}
	ctx := RecipientContext(rec, "https://portal.example.com", "track-1")

	for _, scenario := range []string{
		models.ScenarioITAlert,
		models.ScenarioPasswordReset,
		models.ScenarioPayroll,
		models.ScenarioDelivery,
		models.ScenarioHRPolicy,
		models.ScenarioGeneral,
	} {
		tmpl := &models.EmailTemplate{
			Subject:      "Notice",
			TemplateType: models.TemplateTypeScenario,
			Scenario:     scenario,
		}
		_, html, _ := Render(tmpl, ctx)

		if !strings.Contains(html, ctx["click_url"]) {
			t.Errorf("scenario %s: html missing click url", scenario)
		}
		if !strings.Contains(html, ctx["open_url"]) {
			t.Errorf("scenario %s: html missing open pixel", scenario)
		}
		if !strings.Contains(html, ctx["report_url"]) {
			t.Errorf("scenario %s: html missing report url", scenario)
		}
		if !strings.Contains(html, "Ann") {
			t.Errorf("scenario %s: html does not address the recipient", scenario)
		}
	}
}

func TestRenderScenarioExtraBody(t *testing.T) {
	tmpl := &models.EmailTemplate{
		Subject:      "Notice",
		TemplateType: models.TemplateTypeScenario,
		Scenario:     models.ScenarioGeneral,
		Body:         "Extra note for {{first_name}}",
	}
	ctx := map[string]string{
		"first_name": "Ann",
		"click_url":  "u", "report_url": "u", "open_url": "u",
	}

	_, html, _ := Render(tmpl, ctx)
	if !strings.Contains(html, "Extra note for Ann") {
		t.Errorf("html missing extra body: %q", html)
	}
}

func TestSafeName(t *testing.T) {
	if got := safeName(map[string]string{"first_name": "Ann"}); got != "Ann" {
		t.Errorf("safeName = %q", got)
	}
	if got := safeName(map[string]string{}); got != "Colleague" {
		t.Errorf("safeName fallback = %q", got)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage("it@corp.example.com", "IT Support", "a@x.com", "Notice", "plain body", "<p>html body</p>")
	s := string(msg)

	for _, want := range []string{
		"From:", "IT Support", "To: a@x.com", "Subject: Notice",
		"multipart/alternative", "text/plain", "text/html",
		"plain body", "html body",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("message missing %q", want)
		}
	}
	if strings.Contains(s, "\n\n\r") {
		t.Error("message has broken line endings")
	}
}
