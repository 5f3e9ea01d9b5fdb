// Package alert delivers fraud alerts to chat and email webhooks.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"payguard/internal/fraud/models"
	"payguard/pkg/platform/audit"
	"payguard/pkg/platform/sentinel"
)

// Severity tiers by final risk score.
type Severity string

const (
	SeverityHigh   Severity = "HIGH_RISK"
	SeverityMedium Severity = "MEDIUM_RISK"

	HighThreshold   = 0.8
	MediumThreshold = 0.6
)

// SeverityFor returns the tier for score, or false when no alert is due.
func SeverityFor(score float64) (Severity, bool) {
	switch {
	case score > HighThreshold:
		return SeverityHigh, true
	case score > MediumThreshold:
		return SeverityMedium, true
	}
	return "", false
}

// WebhookNotifier sends high risk alerts to chat and email and emits a
// security audit event; medium risk alerts go to chat only. Unset endpoints
// are skipped.
type WebhookNotifier struct {
	chatURL    string
	emailURL   string
	recipients []string
	client     *http.Client
	audit      audit.Emitter
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*WebhookNotifier)

func WithChatWebhook(url string) Option {
	return func(n *WebhookNotifier) { n.chatURL = url }
}

// WithEmailWebhook sets the email relay endpoint and its recipients.
func WithEmailWebhook(url string, recipients ...string) Option {
	return func(n *WebhookNotifier) {
		n.emailURL = url
		n.recipients = recipients
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(n *WebhookNotifier) {
		if c != nil {
			n.client = c
		}
	}
}

// WithAudit sets where security events go. Defaults to the logger.
func WithAudit(e audit.Emitter) Option {
	return func(n *WebhookNotifier) { n.audit = e }
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *WebhookNotifier) { n.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(n *WebhookNotifier) {
		if now != nil {
			n.now = now
		}
	}
}

func New(opts ...Option) *WebhookNotifier {
	n := &WebhookNotifier{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.audit == nil {
		n.audit = audit.NewLogEmitter(n.logger)
	}
	return n
}

// Notify sends the alert for result's tier. Scores at or below the medium
// threshold are ignored.
func (n *WebhookNotifier) Notify(ctx context.Context, result models.EvaluationResult) error {
	severity, ok := SeverityFor(result.FinalRiskScore)
	if !ok {
		return nil
	}

	attrs := []any{
		"transaction_id", result.TransactionID.String(),
		"user_id", result.UserID,
		"final_risk_score", result.FinalRiskScore,
		"severity", string(severity),
	}

	var g errgroup.Group
	g.Go(func() error { return n.sendChat(ctx, result, severity) })

	if severity == SeverityHigh {
		n.logger.WarnContext(ctx, "high risk fraud alert", attrs...)
		g.Go(func() error { return n.sendEmail(ctx, result, severity) })
		n.audit.Emit(ctx, audit.Event{
			Category:  audit.CategorySecurity,
			Action:    audit.ActionFraudDetected,
			Timestamp: n.now().UTC(),
			UserID:    result.UserID,
			Subject:   result.TransactionID.String(),
			Decision:  string(result.Decision),
			Attrs: map[string]any{
				"final_risk_score": result.FinalRiskScore,
				"amount":           result.Amount.String(),
			},
		})
	} else {
		n.logger.InfoContext(ctx, "medium risk fraud alert", attrs...)
	}
	return g.Wait()
}

type chatField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type chatAttachment struct {
	Color  string      `json:"color"`
	Fields []chatField `json:"fields"`
}

type chatMessage struct {
	Text        string           `json:"text"`
	Attachments []chatAttachment `json:"attachments"`
}

func (n *WebhookNotifier) sendChat(ctx context.Context, result models.EvaluationResult, severity Severity) error {
	if n.chatURL == "" {
		return nil
	}
	color := "warning"
	if severity == SeverityHigh {
		color = "danger"
	}
	msg := chatMessage{
		Text: fmt.Sprintf("%s fraud detected - transaction %s", severity, result.TransactionID),
		Attachments: []chatAttachment{{
			Color: color,
			Fields: []chatField{
				{Title: "Transaction ID", Value: result.TransactionID.String(), Short: true},
				{Title: "User ID", Value: result.UserID, Short: true},
				{Title: "Amount", Value: result.Amount.String(), Short: true},
				{Title: "Risk Score", Value: fmt.Sprintf("%.3f", result.FinalRiskScore), Short: true},
				{Title: "Decision", Value: string(result.Decision), Short: true},
			},
		}},
	}
	if err := n.post(ctx, n.chatURL, msg); err != nil {
		return fmt.Errorf("chat alert: %w", err)
	}
	return nil
}

type emailMessage struct {
	To          []string                `json:"to"`
	Subject     string                  `json:"subject"`
	AlertLevel  Severity                `json:"alertLevel"`
	Transaction models.EvaluationResult `json:"transaction"`
	Timestamp   time.Time               `json:"timestamp"`
}

func (n *WebhookNotifier) sendEmail(ctx context.Context, result models.EvaluationResult, severity Severity) error {
	if n.emailURL == "" {
		return nil
	}
	msg := emailMessage{
		To:          n.recipients,
		Subject:     fmt.Sprintf("Fraud Alert - %s - Transaction: %s", severity, result.TransactionID),
		AlertLevel:  severity,
		Transaction: result,
		Timestamp:   n.now().UTC(),
	}
	if err := n.post(ctx, n.emailURL, msg); err != nil {
		return fmt.Errorf("email alert: %w", err)
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	return nil
}
