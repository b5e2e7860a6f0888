// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"property-insight-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

// TriggerAlert describes a feedback-driven re-analysis for the ops inbox.
type TriggerAlert struct {
	SessionId   string
	Reason      string
	TriggeredAt time.Time
	Details     map[string]interface{}
}

type IEmailService interface {
	SendTriggerAlert(toEmail string, alert TriggerAlert) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderEmail string, log logger.ILogger) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		logger:      log,
	}
}

// RenderTriggerAlert builds the subject and HTML body of an alert.
func RenderTriggerAlert(alert TriggerAlert) (string, string) {
	subject := fmt.Sprintf("Re-analysis triggered for session %s", alert.SessionId)

	keys := make([]string, 0, len(alert.Details))
	for k := range alert.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%s</td></tr>",
			html.EscapeString(k), html.EscapeString(fmt.Sprint(alert.Details[k])))
	}

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Feedback triggered a fresh analysis</h2>
			<p>Session: <strong>%s</strong></p>
			<p>Reason: %s</p>
			<p>At: %s</p>
			<table cellpadding="4">%s</table>
		</div>
	`, html.EscapeString(alert.SessionId), html.EscapeString(alert.Reason),
		alert.TriggeredAt.UTC().Format(time.RFC3339), rows.String())

	return subject, body
}

func (s *emailService) SendTriggerAlert(toEmail string, alert TriggerAlert) error {
	subject, body := RenderTriggerAlert(alert)

	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("MAILER", "Failed to send trigger alert", map[string]interface{}{
			"to":         toEmail,
			"session_id": alert.SessionId,
			"error":      err.Error(),
		})
		return err
	}

	s.logger.Info("MAILER", "Trigger alert sent", map[string]interface{}{"to": toEmail, "session_id": alert.SessionId})
	return nil
}
