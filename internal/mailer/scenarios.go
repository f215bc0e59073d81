package mailer

import (
	"fmt"

	"github.com/secsim/phishportal/internal/models"
)

// scenarioParts holds the pieces that differ between built-in scenarios
type scenarioParts struct {
	headline string
	intro    string
	action   string
	footer   string
	accent   string
}

func scenarioFor(name string) scenarioParts {
	switch name {
	case models.ScenarioPasswordReset:
		return scenarioParts{
			headline: "Password Expiration Notice",
			intro:    "Our records show that your account password expires today. To avoid losing access to email and internal systems, reset it now.",
			action:   "Reset Password",
			footer:   "This is an automated message from the identity management system.",
			accent:   "#DC2626",
		}
	case models.ScenarioPayroll:
		return scenarioParts{
			headline: "Action Required: Confirm Your Bank Details",
			intro:    "Payroll processing for this month could not be completed because your bank details failed verification. Please confirm them before the cut-off date.",
			action:   "Confirm Bank Details",
			footer:   "Payroll Department",
			accent:   "#059669",
		}
	case models.ScenarioDelivery:
		return scenarioParts{
			headline: "Delivery Attempt Failed",
			intro:    "A package addressed to you could not be delivered to the office reception. Use the link below to schedule redelivery within 48 hours.",
			action:   "Schedule Redelivery",
			footer:   "Logistics Notification Service",
			accent:   "#D97706",
		}
	case models.ScenarioHRPolicy:
		return scenarioParts{
			headline: "Updated HR Policy Requires Your Acknowledgment",
			intro:    "The employee handbook has been updated. All staff must review and acknowledge the new policy by the end of the week.",
			action:   "Review Policy",
			footer:   "Human Resources",
			accent:   "#7C3AED",
		}
	case models.ScenarioGeneral:
		return scenarioParts{
			headline: "Internal Announcement",
			intro:    "Please find the latest internal update below.",
			action:   "Read More",
			footer:   "Internal Communications",
			accent:   "#2563EB",
		}
	default: // IT_ALERT
		return scenarioParts{
			headline: "IT Security Alert: Unusual Sign-in Activity",
			intro:    "We detected a sign-in to your account from an unrecognized device. If this was not you, secure your account immediately.",
			action:   "Secure My Account",
			footer:   "IT Security Team",
			accent:   "#DC2626",
		}
	}
}

// buildScenarioHTML renders a built-in scenario layout for one recipient.
// The open-tracking pixel is appended at the bottom of the body.
func buildScenarioHTML(tmpl *models.EmailTemplate, ctx map[string]string) string {
	p := scenarioFor(tmpl.Scenario)
	name := safeName(ctx)

	return fmt.Sprintf(`<table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#F3F4F6; font-family:system-ui,-apple-system,'Segoe UI',Roboto,Arial,sans-serif;">
  <tr>
    <td align="center" style="padding:40px 20px;">
      <table width="600" cellpadding="0" cellspacing="0" style="background-color:#FFFFFF; border-radius:8px; overflow:hidden;">
        <tr>
          <td style="background-color:%s; padding:16px 24px; color:#FFFFFF; font-size:18px; font-weight:600;">%s</td>
        </tr>
        <tr>
          <td style="padding:24px; color:#111827; font-size:14px; line-height:1.6;">
            <p>Hi %s,</p>
            <p>%s</p>
            <!--extra-->
            <p style="text-align:center; margin:32px 0;">
              <a href="%s" style="background-color:%s; color:#FFFFFF; padding:12px 28px; border-radius:6px; text-decoration:none; font-weight:600;">%s</a>
            </p>
            <p style="color:#6B7280; font-size:12px;">If the button does not work, copy this link into your browser:<br>%s</p>
          </td>
        </tr>
        <tr>
          <td style="padding:16px 24px; background-color:#F9FAFB; color:#6B7280; font-size:12px;">%s &middot; <a href="%s" style="color:#6B7280;">Report this email</a></td>
        </tr>
      </table>
      <img src="%s" width="1" height="1" alt="">
    </td>
  </tr>
</table>`,
		p.accent, p.headline,
		name,
		p.intro,
		ctx["click_url"], p.accent, p.action,
		ctx["click_url"],
		p.footer, ctx["report_url"],
		ctx["open_url"],
	)
}
