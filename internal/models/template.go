package models

import "time"

// Template types
const (
	TemplateTypeScenario = "SCENARIO"
	TemplateTypeCustom   = "CUSTOM"
)

// Built-in phishing scenarios
const (
	ScenarioITAlert       = "IT_ALERT"
	ScenarioPasswordReset = "PASSWORD_RESET"
	ScenarioPayroll       = "PAYROLL"
	ScenarioDelivery      = "DELIVERY"
	ScenarioHRPolicy      = "HR_POLICY"
	ScenarioGeneral       = "GENERAL"
)

// ValidScenario reports whether s names a built-in scenario
func ValidScenario(s string) bool {
	switch s {
	case ScenarioITAlert, ScenarioPasswordReset, ScenarioPayroll,
		ScenarioDelivery, ScenarioHRPolicy, ScenarioGeneral:
		return true
	}
	return false
}

// EmailTemplate represents a phishing email template, either a pre-built
// scenario layout or a custom HTML body with {{placeholder}} variables.
type EmailTemplate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	TemplateType   string    `json:"template_type"`
	Scenario       string    `json:"scenario"`
	HTMLContent    string    `json:"html_content"`
	SenderEmail    string    `json:"sender_email"`
	SenderName     string    `json:"sender_name"`
	LearningPoints string    `json:"learning_points"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TemplateFilter for filtering templates
type TemplateFilter struct {
	Search string
	Limit  int
	Offset int
}
