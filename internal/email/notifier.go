package email

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/marketlane/backend/internal/metrics"
	"github.com/marketlane/backend/internal/models"
)

var newMessageTemplate = template.Must(template.New("new_message").Parse(`
<p>Hi {{.Recipient}},</p>
<p><strong>{{.Sender}}</strong> sent you a message in <strong>{{.Conversation}}</strong>:</p>
<blockquote>{{.Preview}}</blockquote>
<p>Open the admin dashboard to reply.</p>
`))

// Notifier sends new-message notification emails. Callers treat every send
// as fire-and-forget; a delivery failure never fails the message send.
type Notifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewNotifier(host string, port int, username, password, from string) *Notifier {
	return &Notifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// NotifyNewMessage emails one participant about a message they have not seen.
func (n *Notifier) NotifyNewMessage(recipient, sender models.User, conv *models.Conversation, msg *models.Message) error {
	subject := fmt.Sprintf("New message from %s", sender.DisplayName)

	var body bytes.Buffer
	err := newMessageTemplate.Execute(&body, map[string]string{
		"Recipient":    recipient.DisplayName,
		"Sender":       sender.DisplayName,
		"Conversation": conv.Title,
		"Preview":      msg.Preview(),
	})
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", recipient.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	if err := n.dialer.DialAndSend(m); err != nil {
		metrics.NotificationEmails.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	metrics.NotificationEmails.WithLabelValues("sent").Inc()
	return nil
}
