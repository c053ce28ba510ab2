package telephony

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"agri-ivr/internal/ivr"
	"agri-ivr/internal/session"
	"agri-ivr/pkg/logger"
	"agri-ivr/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// VoiceWebhook is the subset of gateway webhook fields the IVR consumes.
// Gateways send them form-encoded in the body or in the query string.
type VoiceWebhook struct {
	CallSid      string
	From         string
	To           string
	SpeechResult string
	Digits       string
}

// ParseVoiceWebhook reads webhook fields from body and query. A body that
// cannot be parsed yields empty fields, which the controller treats as silence.
func ParseVoiceWebhook(r *http.Request) (VoiceWebhook, error) {
	err := r.ParseForm()
	w := VoiceWebhook{
		CallSid:      firstValue(r, "CallSid", "CallSID", "call_sid"),
		From:         strings.TrimSpace(r.FormValue("From")),
		To:           strings.TrimSpace(r.FormValue("To")),
		SpeechResult: r.FormValue("SpeechResult"),
		// Some gateways wrap keypad input in quotes.
		Digits: strings.Trim(r.FormValue("Digits"), `"'`),
	}
	return w, err
}

func firstValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.FormValue(k)); v != "" {
			return v
		}
	}
	return ""
}

// Input is the caller's utterance: speech if present, else keypad digits.
func (w VoiceWebhook) Input() string {
	if w.SpeechResult != "" {
		return strings.TrimSpace(w.SpeechResult)
	}
	return strings.TrimSpace(w.Digits)
}

// TurnHandler runs one IVR turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, t ivr.Turn) (ivr.Reply, error)
}

// VoiceHandler adapts one gateway dialect to the controller. It never
// returns a non-200 to the gateway for a processed turn: failures become a
// spoken apology plus hangup.
type VoiceHandler struct {
	Controller TurnHandler
	Dialect    Dialect
	Gather     GatherOptions
	// PublicBaseURL prefixes the request path to build the gather action.
	PublicBaseURL string
	// Signature is optional; when set, unsigned requests get 403.
	Signature *SignatureValidator
}

const probeText = "IVR webhook is up"

func (h VoiceHandler) Handle(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost:
		h.turn(c)
	case http.MethodGet, http.MethodOptions, http.MethodHead:
		if h.Dialect.AnswerProbes {
			c.String(http.StatusOK, probeText)
			return
		}
		h.methodNotAllowed(c)
	default:
		h.methodNotAllowed(c)
	}
}

func (h VoiceHandler) methodNotAllowed(c *gin.Context) {
	c.Header("Allow", http.MethodPost)
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
}

func (h VoiceHandler) turn(c *gin.Context) {
	log := logger.Annotate(c, "dialect", h.Dialect.Name)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("webhook panic", "panic", fmt.Sprint(rec))
			metrics.WebhookErrors.WithLabelValues(h.Dialect.Name, "panic").Inc()
			h.write(c, systemError())
		}
	}()

	form, err := ParseVoiceWebhook(c.Request)
	if err != nil {
		log.Warn("webhook form parse failed", "err", err)
		metrics.WebhookErrors.WithLabelValues(h.Dialect.Name, "parse").Inc()
	}
	log = logger.Annotate(c, "call_id", session.NormalizeCallID(form.CallSid))

	if h.Signature != nil && !h.Signature.Valid(c.Request) {
		log.Warn("webhook signature rejected")
		metrics.WebhookErrors.WithLabelValues(h.Dialect.Name, "signature").Inc()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	if h.Controller == nil {
		log.Error("ivr controller not configured")
		h.write(c, systemError())
		return
	}

	reply, err := h.Controller.HandleTurn(c.Request.Context(), ivr.Turn{
		CallID:       form.CallSid,
		CallerNumber: form.From,
		Input:        form.Input(),
		Language:     h.Gather.Language,
		Dialect:      h.Dialect.Name,
	})
	if err != nil {
		log.Error("ivr turn failed", "err", err)
		metrics.WebhookErrors.WithLabelValues(h.Dialect.Name, "turn").Inc()
		reply = systemError()
	}
	h.write(c, reply)
}

func (h VoiceHandler) write(c *gin.Context, reply ivr.Reply) {
	opts := h.Gather
	if opts.Action == "" {
		opts.Action = strings.TrimRight(h.PublicBaseURL, "/") + c.Request.URL.Path
	}

	body, err := h.Dialect.Render(reply, opts)
	if err != nil {
		logger.FromGin(c).Error("markup render failed", "err", err)
		metrics.WebhookErrors.WithLabelValues(h.Dialect.Name, "render").Inc()
		body = fallbackMarkup
	}
	c.Data(http.StatusOK, h.Dialect.ContentType+"; charset=utf-8", []byte(body))
}

func systemError() ivr.Reply {
	return ivr.Reply{Message: ivr.PromptSystemError, Hangup: true}
}
