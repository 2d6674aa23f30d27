package utils

import (
	"fmt"
	"html"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"virtualcard_back/pkg/config"
)

const senderName = "Virtual Cards"

type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender отправляет письмо через SMTP
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{dialer: gomail.NewDialer(host, port, user, password), from: from}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, senderName))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	return s.dialer.DialAndSend(m)
}

// MailjetSender отправляет письмо через Mailjet
type MailjetSender struct {
	client *mailjet.Client
	from   string
}

func NewMailjetSender(apiKey, secretKey, from string) *MailjetSender {
	return &MailjetSender{client: mailjet.NewMailjetClient(apiKey, secretKey), from: from}
}

func (s *MailjetSender) Send(to, subject, body string) error {
	messages := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{
		{
			From:     &mailjet.RecipientV31{Email: s.from, Name: senderName},
			To:       &mailjet.RecipientsV31{{Email: to}},
			Subject:  subject,
			HTMLPart: body,
		},
	}}
	_, err := s.client.SendMailV31(messages)
	return err
}

// NewSender picks the delivery backend from config. nil means mail is disabled.
func NewSender(cfg config.Mail) Sender {
	switch cfg.Driver {
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From)
	case "mailjet":
		return NewMailjetSender(cfg.MailjetKey, cfg.MailjetSecret, cfg.From)
	}
	return nil
}

// Notifier sends fire-and-forget user notifications. Delivery failures are only logged.
type Notifier struct {
	sender  Sender
	baseURL string
	log     logrus.FieldLogger
	// async is switched off in tests
	async bool
}

func NewNotifier(sender Sender, baseURL string, log logrus.FieldLogger) *Notifier {
	return &Notifier{sender: sender, baseURL: baseURL, log: log, async: true}
}

func (n *Notifier) SendVerification(to, token string) {
	link := fmt.Sprintf("%s/verify?token=%s", n.baseURL, token)
	n.send(to, "Verify your account", fmt.Sprintf(`<a href="%s">Verify Account</a>`, html.EscapeString(link)))
}

func (n *Notifier) TopupCompleted(to, cardID string, funded decimal.Decimal) {
	n.send(to, "Card funded", fmt.Sprintf(
		`<p>Your card %s was funded with <b>$%s</b>.</p>`, html.EscapeString(cardID), funded.StringFixed(2)))
}

func (n *Notifier) TopupFailed(to, cardID, reason string) {
	n.send(to, "Card funding failed", fmt.Sprintf(
		`<p>Funding of your card %s failed: %s</p><p>Please contact support.</p>`,
		html.EscapeString(cardID), html.EscapeString(reason)))
}

func (n *Notifier) send(to, subject, body string) {
	if n == nil || n.sender == nil || to == "" {
		return
	}
	deliver := func() {
		if err := n.sender.Send(to, subject, body); err != nil {
			n.log.WithFields(logrus.Fields{"to": to, "subject": subject}).WithError(err).Error("failed to send mail")
			return
		}
		n.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail sent")
	}
	if n.async {
		go deliver()
		return
	}
	deliver()
}
