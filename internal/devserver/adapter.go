package devserver

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// LambdaHandler is the signature every HTTP function in cmd/ exposes.
type LambdaHandler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// Adapt serves a Lambda handler from gin. The request is shaped the way an
// HTTP API (payload v2.0) delivers it, with lowercased header names.
func Adapt(h LambdaHandler, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
			return
		}

		res, err := h(c.Request.Context(), toEvent(c, body))
		if err != nil {
			// API Gateway hides function errors behind a generic 500.
			logger.Error("function error", slog.String("path", c.Request.URL.Path), slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
			return
		}
		writeResponse(c, res)
	}
}

func toEvent(c *gin.Context, body []byte) events.APIGatewayV2HTTPRequest {
	r := c.Request

	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(vs, ",")
	}
	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		query[k] = strings.Join(vs, ",")
	}

	req := events.APIGatewayV2HTTPRequest{
		Version:               "2.0",
		RouteKey:              r.Method + " " + c.FullPath(),
		RawPath:               r.URL.Path,
		RawQueryString:        r.URL.RawQuery,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  string(body),
	}
	req.RequestContext.HTTP = events.APIGatewayV2HTTPRequestContextHTTPDescription{
		Method:    r.Method,
		Path:      r.URL.Path,
		Protocol:  r.Proto,
		SourceIP:  c.ClientIP(),
		UserAgent: r.UserAgent(),
	}
	req.RequestContext.TimeEpoch = time.Now().UnixMilli()
	return req
}

func writeResponse(c *gin.Context, res events.APIGatewayV2HTTPResponse) {
	for k, v := range res.Headers {
		c.Header(k, v)
	}
	for k, vs := range res.MultiValueHeaders {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}

	body := []byte(res.Body)
	if res.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(res.Body)
		if err == nil {
			body = decoded
		}
	}

	status := res.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	c.Status(status)
	if len(body) > 0 {
		_, _ = c.Writer.Write(body)
	}
}
