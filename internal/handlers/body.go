package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

var errEmptyBody = errors.New("empty body")

// decodeBody fills v from a JSON or form-encoded body. HTML forms post
// application/x-www-form-urlencoded, and API Gateway base64-wraps those.
func decodeBody(req events.APIGatewayV2HTTPRequest, v any) error {
	raw := req.Body
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("decode base64 body: %w", err)
		}
		raw = string(b)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errEmptyBody
	}

	if isForm(req, raw) {
		values, err := url.ParseQuery(raw)
		if err != nil {
			return fmt.Errorf("parse form body: %w", err)
		}
		fields := make(map[string]string, len(values))
		for k, vs := range values {
			if len(vs) > 0 {
				fields[k] = vs[0]
			}
		}
		b, _ := json.Marshal(fields)
		raw = string(b)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("parse json body: %w", err)
	}
	return nil
}

func isForm(req events.APIGatewayV2HTTPRequest, raw string) bool {
	if strings.HasPrefix(header(req, "Content-Type"), "application/x-www-form-urlencoded") {
		return true
	}
	return !strings.HasPrefix(raw, "{")
}

// header does a case-insensitive lookup; HTTP APIs lowercase header names
// but the devserver and tests may not.
func header(req events.APIGatewayV2HTTPRequest, name string) string {
	if v, ok := req.Headers[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
