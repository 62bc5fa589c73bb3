package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/dental-voice-scheduler/internal/booking"
	"github.com/wolfman30/dental-voice-scheduler/internal/toolcall"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

type config struct {
	upstreamBaseURL string
	upstreamTimeout time.Duration
}

func loadConfig() (config, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return config{}, errors.New("UPSTREAM_BASE_URL is required")
	}

	// Stay under the assistant's tool-call timeout.
	timeout := 15 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return config{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		upstreamTimeout: timeout,
	}, nil
}

var logger = logging.New(os.Getenv("LOG_LEVEL"))

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	client := &http.Client{Timeout: cfg.upstreamTimeout}
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, cfg, client, evt)
	})
}

var toolPaths = map[string]bool{
	"/check-availability":       true,
	"/book-appointment":         true,
	"/tools/check-availability": true,
	"/tools/book-appointment":   true,
}

// forwardedHeaders are passed to the API unchanged.
var forwardedHeaders = []string{"x-vapi-secret", "authorization", "x-request-id"}

func handle(ctx context.Context, cfg config, client *http.Client, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" || path == "/_health" {
		return jsonResponse(map[string]string{"status": "ok"}), nil
	}

	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}
	if !toolPaths[path] {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		logger.Warn("voice-lambda: undecodable body", "path", path, "error", err)
		return technicalIssue(""), nil
	}
	callID := ""
	if env, err := toolcall.Parse(body); err == nil {
		callID = env.CallID
	}

	upstreamURL := cfg.upstreamBaseURL + path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		upstreamURL += "?" + qs
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.upstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		logger.Error("voice-lambda: build upstream request", "error", err)
		return technicalIssue(callID), nil
	}

	req.Header.Set("Content-Type", "application/json")
	if ct := headerValue(evt.Headers, "content-type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for _, h := range forwardedHeaders {
		copyHeader(req.Header, evt.Headers, h)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.Header.Set("X-Real-Ip", ip)
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("voice-lambda: upstream unreachable", "path", path, "error", err)
		return technicalIssue(callID), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Error("voice-lambda: upstream failed", "path", path, "status", resp.StatusCode)
		return technicalIssue(callID), nil
	}

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		out.Headers["retry-after"] = ra
	}
	return out, nil
}

// technicalIssue answers 200 so the assistant still speaks a reply.
func technicalIssue(callID string) events.APIGatewayV2HTTPResponse {
	return jsonResponse(toolcall.Compose(booking.TechnicalIssueMessage, callID))
}

func jsonResponse(payload any) events.APIGatewayV2HTTPResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"content-type": "application/json"},
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func copyHeader(dst http.Header, src map[string]string, header string) {
	if value := strings.TrimSpace(headerValue(src, header)); value != "" {
		dst.Set(header, value)
	}
}
