package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature validates that a request came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload is the URL followed by every form key and value,
// keys sorted.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWebhookRequest represents an incoming Twilio webhook.
type TwilioWebhookRequest struct {
	MessageSid  string
	AccountSid  string
	From        string
	To          string
	Body        string
	ProfileName string
}

// ParseTwilioWebhook parses a Twilio webhook request. ProfileName is set
// by the WhatsApp channel.
func ParseTwilioWebhook(r *http.Request) (*TwilioWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	return &TwilioWebhookRequest{
		MessageSid:  r.FormValue("MessageSid"),
		AccountSid:  r.FormValue("AccountSid"),
		From:        strings.TrimPrefix(r.FormValue("From"), "whatsapp:"),
		To:          strings.TrimPrefix(r.FormValue("To"), "whatsapp:"),
		Body:        r.FormValue("Body"),
		ProfileName: r.FormValue("ProfileName"),
	}, nil
}
