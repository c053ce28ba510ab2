package telephony

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

const headerTwilioSignature = "X-Twilio-Signature"

// SignatureValidator checks X-Twilio-Signature on inbound webhooks.
//
// Twilio signs the public URL it called, which differs from r.URL behind a
// proxy, so the externally visible base URL must be configured.
type SignatureValidator struct {
	v       client.RequestValidator
	baseURL string
}

func NewSignatureValidator(authToken, publicBaseURL string) *SignatureValidator {
	return &SignatureValidator{
		v:       client.NewRequestValidator(authToken),
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Valid reports whether r carries a correct signature. r.ParseForm must
// already have been called.
func (s *SignatureValidator) Valid(r *http.Request) bool {
	sig := r.Header.Get(headerTwilioSignature)
	if sig == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return s.v.Validate(s.baseURL+r.URL.RequestURI(), params, sig)
}
