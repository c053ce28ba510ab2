package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agri-ivr/pkg/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// FallbackMessage is spoken whenever the advisory service cannot answer.
const FallbackMessage = "I'm experiencing technical difficulties."

// DefaultTimeout bounds one advisory round trip.
const DefaultTimeout = 8 * time.Second

// Bridge forwards post-verification questions to the advisory service.
//
// Rules:
// - one attempt per turn, no retries; the caller's next utterance is the retry.
// - never returns an error or raw error text; failures become FallbackMessage.
// - always bounded by Timeout so a slow upstream cannot stall a call.
type Bridge struct {
	client  *resty.Client
	url     string
	timeout time.Duration
	log     *slog.Logger

	newSessionID func() string
}

type Config struct {
	URL     string
	Timeout time.Duration
}

type askRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
}

type askResponse struct {
	Message string `json:"message"`
}

func NewBridge(cfg Config, log *slog.Logger) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	return &Bridge{
		client:       client,
		url:          cfg.URL,
		timeout:      cfg.Timeout,
		log:          log,
		newSessionID: uuid.NewString,
	}
}

// Ask returns the advisory answer for message, or FallbackMessage.
func (b *Bridge) Ask(ctx context.Context, message, language string) string {
	start := time.Now()
	reply, outcome := b.ask(ctx, message, language)
	metrics.AdvisoryRequests.WithLabelValues(outcome).Inc()
	metrics.AdvisoryLatency.Observe(time.Since(start).Seconds())
	return reply
}

func (b *Bridge) ask(ctx context.Context, message, language string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	sessionID := b.newSessionID()
	log := b.log.With("advisory_session_id", sessionID)

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(askRequest{Message: message, SessionID: sessionID, Language: language}).
		Post(b.url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("advisory request timed out", "timeout", b.timeout.String())
			return FallbackMessage, "timeout"
		}
		log.Warn("advisory request failed", "err", err)
		return FallbackMessage, "error"
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		log.Warn("advisory returned non-2xx", "status", resp.StatusCode())
		return FallbackMessage, "bad_status"
	}

	var out askResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		log.Warn("advisory returned malformed body", "err", err)
		return FallbackMessage, "bad_body"
	}
	reply := strings.TrimSpace(out.Message)
	if reply == "" {
		log.Warn("advisory returned empty message")
		return FallbackMessage, "bad_body"
	}
	return reply, "ok"
}
