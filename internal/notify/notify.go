package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"
)

// Notifier delivers an out-of-band notification, e.g. to the blog admin
// when a new comment awaits moderation.
type Notifier interface {
	Send(subject, body string) error
}

// Mailer sends notifications via SMTP.
type Mailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
	To   string
}

var mailTmpl = template.Must(template.New("mail").Parse(`Subject: {{.Subject}}
MIME-Version: 1.0
Content-Type: text/html; charset=UTF-8

<!DOCTYPE html>
<html>
<body>
	<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: sans-serif;">
		{{.Body}}
	</div>
</body>
</html>
`))

func (m *Mailer) Send(subject, body string) error {
	var msg bytes.Buffer
	msg.WriteString("To: " + m.To + "\r\n")
	data := struct {
		Subject string
		Body    template.HTML
	}{Subject: subject, Body: template.HTML(body)}
	if err := mailTmpl.Execute(&msg, data); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
	return smtp.SendMail(addr, auth, m.From, []string{m.To}, msg.Bytes())
}

// LogNotifier just logs notifications. It is the fallback when no SMTP
// settings are configured and the notifier used by tests.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l *LogNotifier) Send(subject, body string) error {
	if l.Logger != nil {
		l.Logger.Info("notification", zap.String("subject", subject))
	}
	return nil
}
