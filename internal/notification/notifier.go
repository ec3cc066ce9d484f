// Package notification delivers email alerts for high-severity verdicts.
package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/config"
	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/detect"
	"github.com/Akshita3104/SentinelAi-sub000/internal/fabric"
)

// Notifier sends a human-readable alert.
type Notifier interface {
	Send(subject, body string) error
}

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailNotifier creates an EmailNotifier from the SMTP settings.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth}
}

// Send sends an email to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")

	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := smtp.SendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// WatchVerdicts subscribes to detection results and emails an alert for
// every DDoS classification. It returns when ctx is cancelled.
func WatchVerdicts(ctx context.Context, fab *fabric.Fabric, n Notifier, log *logrus.Logger) {
	sub := fab.Subscribe(fabric.TopicDetectionResult)
	defer fab.Unsubscribe(sub.ID)

	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			return
		}
		payload, ok := ev.Payload.(detect.ResultPayload)
		if !ok {
			continue
		}
		if payload.Verdict.Prediction != model.PredictionDDoS {
			continue
		}
		subject := fmt.Sprintf("[DDoS Alert] attack traffic from %s", payload.IP)
		body := formatAlert(payload)
		if err := n.Send(subject, body); err != nil {
			log.WithError(err).Warn("failed to deliver verdict alert")
			continue
		}
		log.WithField("ip", payload.IP).Info("verdict alert delivered")
	}
}

func formatAlert(p detect.ResultPayload) string {
	var b strings.Builder
	b.WriteString("<h3>DDoS traffic detected</h3>")
	fmt.Fprintf(&b, "<p>Source IP: <b>%s</b></p>", p.IP)
	fmt.Fprintf(&b, "<p>Confidence: %.2f (%s)</p>", p.Verdict.Confidence, p.Verdict.ThreatLevel)
	fmt.Fprintf(&b, "<p>Recommended action: %s</p>", p.Verdict.Mitigation.Action)
	if len(p.Verdict.ConfidenceFactors) > 0 {
		b.WriteString("<ul>")
		for _, f := range p.Verdict.ConfidenceFactors {
			fmt.Fprintf(&b, "<li>%s</li>", f)
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, "<p>Detected at %s</p>", p.Verdict.Timestamp)
	return b.String()
}
