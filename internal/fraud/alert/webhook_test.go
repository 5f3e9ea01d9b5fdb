package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/fraud/models"
	"payguard/pkg/platform/audit"
	"payguard/pkg/platform/sentinel"
	"payguard/pkg/testutil"
)

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
	status int
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err == nil {
			r.mu.Lock()
			r.bodies = append(r.bodies, body)
			r.mu.Unlock()
		}
		if r.status != 0 {
			w.WriteHeader(r.status)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (r *recorder) body(i int) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[i]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func result(score float64) models.EvaluationResult {
	return models.EvaluationResult{
		TransactionID:  uuid.New(),
		UserID:         "user-7",
		Amount:         decimal.NewFromInt(15000),
		Decision:       models.DecisionBlock,
		FinalRiskScore: score,
		Timestamp:      time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
		ok    bool
	}{
		{0.95, SeverityHigh, true},
		{0.81, SeverityHigh, true},
		{0.8, SeverityMedium, true},
		{0.61, SeverityMedium, true},
		{0.6, "", false},
		{0.1, "", false},
	}
	for _, tt := range tests {
		got, ok := SeverityFor(tt.score)
		assert.Equal(t, tt.want, got, "score %v", tt.score)
		assert.Equal(t, tt.ok, ok, "score %v", tt.score)
	}
}

func TestWebhookNotifier(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "chat and email webhooks", func(t *testing.T) {
		testutil.When(t, "a high risk result arrives", func(t *testing.T) {
			chat, mail := &recorder{}, &recorder{}
			var logs bytes.Buffer
			n := New(
				WithChatWebhook(chat.server(t).URL),
				WithEmailWebhook(mail.server(t).URL, "fraud@example.com"),
				WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
			)
			r := result(0.93)
			require.NoError(t, n.Notify(ctx, r))

			testutil.Then(t, "chat and email are sent and a security event is logged", func(t *testing.T) {
				require.Equal(t, 1, chat.count())
				require.Equal(t, 1, mail.count())
				assert.Contains(t, chat.body(0)["text"], string(SeverityHigh))
				assert.Equal(t, []any{"fraud@example.com"}, mail.body(0)["to"])
				assert.Equal(t, string(SeverityHigh), mail.body(0)["alertLevel"])
				assert.Contains(t, logs.String(), "FRAUD_DETECTED")
				assert.Contains(t, logs.String(), r.TransactionID.String())
			})
		})

		testutil.When(t, "a medium risk result arrives", func(t *testing.T) {
			chat, mail := &recorder{}, &recorder{}
			n := New(WithChatWebhook(chat.server(t).URL), WithEmailWebhook(mail.server(t).URL))
			require.NoError(t, n.Notify(ctx, result(0.7)))

			testutil.Then(t, "only chat is sent", func(t *testing.T) {
				assert.Equal(t, 1, chat.count())
				assert.Equal(t, 0, mail.count())
				attachments := chat.body(0)["attachments"].([]any)
				assert.Equal(t, "warning", attachments[0].(map[string]any)["color"])
			})
		})

		testutil.When(t, "the score is at the medium threshold", func(t *testing.T) {
			chat := &recorder{}
			n := New(WithChatWebhook(chat.server(t).URL))
			require.NoError(t, n.Notify(ctx, result(0.6)))

			testutil.Then(t, "nothing is sent", func(t *testing.T) {
				assert.Equal(t, 0, chat.count())
			})
		})
	})

	testutil.Given(t, "a failing chat webhook", func(t *testing.T) {
		chat := &recorder{status: http.StatusBadGateway}
		n := New(WithChatWebhook(chat.server(t).URL))
		err := n.Notify(ctx, result(0.9))

		testutil.Then(t, "the failure is reported as unavailable", func(t *testing.T) {
			assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		})
	})

	testutil.Given(t, "an audit store", func(t *testing.T) {
		store := audit.NewInMemoryStore(10)
		n := New(WithAudit(store))
		require.NoError(t, n.Notify(ctx, result(0.7)))
		high := result(0.95)
		require.NoError(t, n.Notify(ctx, high))

		testutil.Then(t, "only the high risk alert is audited", func(t *testing.T) {
			events := store.ListRecent(0)
			require.Len(t, events, 1)
			assert.Equal(t, audit.ActionFraudDetected, events[0].Action)
			assert.Equal(t, high.TransactionID.String(), events[0].Subject)
			assert.Equal(t, "BLOCK", events[0].Decision)
		})
	})

	testutil.Given(t, "no endpoints configured", func(t *testing.T) {
		testutil.Then(t, "alerts are logged only", func(t *testing.T) {
			assert.NoError(t, New().Notify(ctx, result(0.99)))
		})
	})
}
