package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html"
)

func headers(contentType string) map[string]string {
	h := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST,OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	return h
}

func jsonResp(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers(contentTypeJSON),
		Body:       string(b),
	}, nil
}

// messageResp is the {"message": ...} body every upload failure uses.
func messageResp(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, map[string]string{"message": msg})
}

func htmlResp(status int, body string) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers(contentTypeHTML),
		Body:       body,
	}, nil
}

func preflightResp(contentType string) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusOK,
		Headers:    headers(contentType),
	}, nil
}

func isPreflight(req events.APIGatewayV2HTTPRequest) bool {
	return strings.EqualFold(req.RequestContext.HTTP.Method, http.MethodOptions)
}
