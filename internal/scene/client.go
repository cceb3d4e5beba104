package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"manuscripta/internal/logger"
	"manuscripta/internal/models"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ScenePath is the generation endpoint relative to the configured base URL.
	ScenePath = "/api/scene/getScene"

	previewLimit = 160
)

var tracer = otel.Tracer("manuscripta/internal/scene")

// Options configures a Client.
type Options struct {
	// Endpoint is the service base URL, e.g. "http://scenes.example".
	Endpoint  string
	UserAgent string
	// Style, when set, prefixes every chunk with "Make in style of <Style>: ".
	Style string
	// Timeout bounds one request including the body read. Zero means no timeout.
	Timeout time.Duration
}

// Client requests scene illustrations for text chunks. It never retries.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	endpoint   string
	opts       Options
}

// NewClient creates a new scene client.
func NewClient(httpClient *http.Client, log logger.Logger, opts Options) (*Client, error) {
	base, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene endpoint '%s': %w", opts.Endpoint, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scene endpoint '%s' must be an absolute URL", opts.Endpoint)
	}
	endpoint := base.JoinPath(ScenePath)

	return &Client{
		httpClient: httpClient,
		logger:     log,
		endpoint:   endpoint.String(),
		opts:       opts,
	}, nil
}

type sceneRequest struct {
	TextChunk string `json:"text_chunk"`
}

// Fetch performs one scene request for chunk and interprets the response.
func (c *Client) Fetch(ctx context.Context, chunk string) models.SceneResult {
	result := models.SceneResult{Chunk: chunk, RequestID: uuid.NewString()}

	ctx, span := tracer.Start(ctx, "SceneClient.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scene.request_id", result.RequestID),
			attribute.Int("scene.chunk_runes", len([]rune(chunk))),
		),
	)
	defer span.End()

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	imageURL, serr := c.do(ctx, chunk, result.RequestID)
	if serr != nil {
		result.Err = serr
		span.SetStatus(codes.Error, serr.Message)
		span.SetAttributes(attribute.String("scene.error_kind", serr.Kind.String()))
		if serr.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.status_code", serr.StatusCode))
		}
		return result
	}

	result.ImageURL = imageURL
	c.logger.Debugf("Scene %s resolved to %s", result.RequestID, imageURL)
	return result
}

// FetchAsync runs Fetch on its own goroutine and hands the result to onDone there.
// onDone must marshal the result onto whatever goroutine owns the consumer state.
func (c *Client) FetchAsync(ctx context.Context, chunk string, onDone func(models.SceneResult)) {
	go func() {
		res := c.Fetch(ctx, chunk)
		if onDone != nil {
			onDone(res)
		}
	}()
}

func (c *Client) do(ctx context.Context, chunk, requestID string) (string, *models.SceneError) {
	payload, err := json.Marshal(sceneRequest{TextChunk: c.styled(chunk)})
	if err != nil {
		return "", c.protocolError(fmt.Sprintf("failed to encode scene request: %v", err), 0, err)
	}

	var wrote atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { wrote.Store(true) },
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", c.transportError("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.Debugf("Requesting scene %s (%d bytes)", requestID, len(payload))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(requestStage(err, wrote.Load()), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.transportError("read body", err)
	}

	return c.interpret(resp.StatusCode, body)
}

func (c *Client) styled(chunk string) string {
	if c.opts.Style == "" {
		return chunk
	}
	return "Make in style of " + c.opts.Style + ": " + chunk
}

// interpret maps a response to an image URL or a scene error.
// Any status >= 400 fails regardless of body shape.
func (c *Client) interpret(status int, body []byte) (string, *models.SceneError) {
	if status >= 400 {
		var serverMessage string
		if json.Valid(body) {
			serverMessage = extractMessage(body)
		}
		msg := fmt.Sprintf("HTTP %d", status)
		if serverMessage != "" {
			msg += ": " + serverMessage
		} else if len(body) > 0 {
			msg += fmt.Sprintf(" - body: %q", preview(body))
		}
		return "", c.applicationError(msg, status)
	}

	if len(bytes.TrimSpace(body)) > 0 {
		var probe any
		if err := json.Unmarshal(body, &probe); err != nil {
			msg := fmt.Sprintf("Scene API returned invalid JSON (%v) - body preview: %q", err, preview(body))
			return "", c.protocolError(msg, status, err)
		}
	}

	if image := gjson.GetBytes(body, "data.image"); image.Type == gjson.String && image.Str != "" {
		return image.Str, nil
	}

	if reason := extractMessage(body); reason != "" {
		return "", c.applicationError(reason, status)
	}
	msg := "Scene API response did not contain data.image"
	if len(body) > 0 {
		msg += fmt.Sprintf(" - body preview: %q", preview(body))
	}
	return "", c.protocolError(msg, status, nil)
}

// extractMessage returns the first non-empty string among the known error fields.
func extractMessage(body []byte) string {
	for _, path := range []string{"error", "message", "data.error", "data.message"} {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// preview returns at most previewLimit characters of body, with an ellipsis when cut.
func preview(body []byte) string {
	if len(body) == 0 {
		return "(empty body)"
	}
	runes := []rune(strings.ToValidUTF8(string(body), "�"))
	if len(runes) <= previewLimit {
		return string(runes)
	}
	return string(runes[:previewLimit]) + "…"
}

// requestStage names the step a failed round trip died in.
func requestStage(err error, wrote bool) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "connect"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "connect"
	}
	if wrote {
		return "receive response"
	}
	return "send request"
}

func (c *Client) transportError(stage string, err error) *models.SceneError {
	code := 0
	var errno syscall.Errno
	if errors.As(err, &errno) {
		code = int(errno)
	}

	msg := stage + " failed"
	if code != 0 {
		msg += fmt.Sprintf(" (%d)", code)
	}
	msg += ": " + err.Error()

	c.logger.Errorf("Scene request %s", msg)
	return &models.SceneError{Kind: models.KindTransport, Stage: stage, Code: code, Message: msg, Err: err}
}

func (c *Client) protocolError(msg string, status int, err error) *models.SceneError {
	c.logger.Warnf("%s", msg)
	return &models.SceneError{Kind: models.KindProtocol, StatusCode: status, Message: msg, Err: err}
}

func (c *Client) applicationError(msg string, status int) *models.SceneError {
	c.logger.Warnf("%s", msg)
	return &models.SceneError{Kind: models.KindApplication, StatusCode: status, Message: msg}
}
