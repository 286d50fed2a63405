package providers

import (
	"fmt"
	"unicode/utf8"
)

// Reason classifies why a provider call failed.
type Reason string

const (
	ReasonTransport    Reason = "transport"
	ReasonStatus       Reason = "status"
	ReasonContentType  Reason = "content_type"
	ReasonDecode       Reason = "decode"
	ReasonMissingField Reason = "missing_field"
	ReasonUnsupported  Reason = "unsupported_provider"
	ReasonAuth         Reason = "auth"
)

// maxErrorBody is how much of an upstream body an error keeps
const maxErrorBody = 200

// ProviderError is every failure of an outbound generation call. It keeps
// the upstream status and a truncated body for diagnostics; the body is
// never shown to end users.
type ProviderError struct {
	Provider    string
	Reason      Reason
	StatusCode  int
	ContentType string
	Body        string
	Err         error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider error (%s)", e.Provider, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.ContentType != "" && e.Reason == ReasonContentType {
		msg += fmt.Sprintf(": content-type %s", e.ContentType)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += " - " + e.Body
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// truncateBody cuts b to maxErrorBody bytes on a rune boundary
func truncateBody(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut])
}
