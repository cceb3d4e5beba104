package scene

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"manuscripta/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger is a no-op logger for testing purposes.
type mockLogger struct{}

func (m *mockLogger) Debugf(format string, v ...interface{}) {}
func (m *mockLogger) Infof(format string, v ...interface{})  {}
func (m *mockLogger) Warnf(format string, v ...interface{})  {}
func (m *mockLogger) Errorf(format string, v ...interface{}) {}

func newTestClient(t *testing.T, endpoint string, opts Options) *Client {
	t.Helper()
	opts.Endpoint = endpoint
	c, err := NewClient(http.DefaultClient, &mockLogger{}, opts)
	require.NoError(t, err)
	return c
}

// respond starts a server that answers every scene request with status and body.
func respond(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Request(t *testing.T) {
	var got struct {
		method, path, contentType, userAgent, requestID string
		body                                            map[string]string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.contentType = r.Header.Get("Content-Type")
		got.userAgent = r.Header.Get("User-Agent")
		got.requestID = r.Header.Get("X-Request-Id")
		json.NewDecoder(r.Body).Decode(&got.body)
		io.WriteString(w, `{"data":{"image":"http://x/y.png"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{UserAgent: "Manuscripta/1.0", Style: "ink wash"})
	res := c.Fetch(context.Background(), "Привет, мир.")

	require.True(t, res.OK())
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, ScenePath, got.path)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "Manuscripta/1.0", got.userAgent)
	assert.Equal(t, res.RequestID, got.requestID)
	assert.Equal(t, "Make in style of ink wash: Привет, мир.", got.body["text_chunk"])
	assert.Equal(t, "Привет, мир.", res.Chunk, "the chunk identity is the unstyled text")
}

func TestFetch_Responses(t *testing.T) {
	long := strings.Repeat("é", 200)

	cases := []struct {
		name        string
		status      int
		body        string
		wantURL     string
		wantKind    models.ErrorKind
		wantMessage []string
	}{
		{
			name:    "success",
			status:  http.StatusOK,
			body:    `{"data":{"image":"http://x/y.png"}}`,
			wantURL: "http://x/y.png",
		},
		{
			name:        "application error with message",
			status:      http.StatusUnprocessableEntity,
			body:        `{"message":"bad chunk"}`,
			wantKind:    models.KindApplication,
			wantMessage: []string{"HTTP 422", "bad chunk"},
		},
		{
			name:        "error field wins over message",
			status:      http.StatusBadRequest,
			body:        `{"message":"second","error":"first"}`,
			wantKind:    models.KindApplication,
			wantMessage: []string{"HTTP 400: first"},
		},
		{
			name:        "nested data message",
			status:      http.StatusInternalServerError,
			body:        `{"data":{"message":"generator offline"}}`,
			wantKind:    models.KindApplication,
			wantMessage: []string{"HTTP 500: generator offline"},
		},
		{
			name:        "status error with non json body",
			status:      http.StatusBadGateway,
			body:        "<html>bad gateway</html>",
			wantKind:    models.KindApplication,
			wantMessage: []string{"HTTP 502", "body:", "bad gateway"},
		},
		{
			name:        "status error with empty body",
			status:      http.StatusServiceUnavailable,
			body:        "",
			wantKind:    models.KindApplication,
			wantMessage: []string{"HTTP 503"},
		},
		{
			name:        "invalid json",
			status:      http.StatusOK,
			body:        "not json at all",
			wantKind:    models.KindProtocol,
			wantMessage: []string{"invalid JSON", "not json at all"},
		},
		{
			name:        "missing image",
			status:      http.StatusOK,
			body:        `{"data":{}}`,
			wantKind:    models.KindProtocol,
			wantMessage: []string{"did not contain data.image", `{\"data\":{}}`},
		},
		{
			name:        "missing image but error field",
			status:      http.StatusOK,
			body:        `{"data":{"error":"quota exceeded"}}`,
			wantKind:    models.KindApplication,
			wantMessage: []string{"quota exceeded"},
		},
		{
			name:        "image is not a string",
			status:      http.StatusOK,
			body:        `{"data":{"image":42}}`,
			wantKind:    models.KindProtocol,
			wantMessage: []string{"did not contain data.image"},
		},
		{
			name:        "empty body",
			status:      http.StatusOK,
			body:        "",
			wantKind:    models.KindProtocol,
			wantMessage: []string{"did not contain data.image"},
		},
		{
			name:        "long body is truncated",
			status:      http.StatusOK,
			body:        `{"data":{"note":"` + long + `"}}`,
			wantKind:    models.KindProtocol,
			wantMessage: []string{"…"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := respond(t, tc.status, tc.body)
			res := newTestClient(t, srv.URL, Options{}).Fetch(context.Background(), "chunk")

			assert.Equal(t, "chunk", res.Chunk)
			if tc.wantURL != "" {
				require.Nil(t, res.Err)
				assert.Equal(t, tc.wantURL, res.ImageURL)
				return
			}

			require.NotNil(t, res.Err)
			assert.False(t, res.OK())
			assert.Empty(t, res.ImageURL)
			assert.Equal(t, tc.wantKind, res.Err.Kind)
			assert.Equal(t, tc.status, res.Err.StatusCode)
			for _, want := range tc.wantMessage {
				assert.Contains(t, res.Err.Message, want)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "(empty body)", preview(nil))
	assert.Equal(t, "short", preview([]byte("short")))

	exact := strings.Repeat("ж", previewLimit)
	assert.Equal(t, exact, preview([]byte(exact)))

	cut := preview([]byte(strings.Repeat("ж", previewLimit+1)))
	assert.Equal(t, previewLimit+1, len([]rune(cut)))
	assert.True(t, strings.HasSuffix(cut, "…"))
}

func TestFetch_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	res := newTestClient(t, "http://"+addr, Options{}).Fetch(context.Background(), "chunk")

	require.NotNil(t, res.Err)
	assert.Equal(t, models.KindTransport, res.Err.Kind)
	assert.Equal(t, "connect", res.Err.Stage)
	assert.NotZero(t, res.Err.Code, "the OS error number is surfaced")
	assert.Contains(t, res.Err.Message, "connect failed")
	assert.Zero(t, res.Err.StatusCode)

	var serr *models.SceneError
	assert.True(t, errors.As(error(res.Err), &serr))
}

func TestFetch_ConnectionDroppedAfterRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL, Options{}).Fetch(context.Background(), "chunk")

	require.NotNil(t, res.Err)
	assert.Equal(t, models.KindTransport, res.Err.Kind)
	assert.Equal(t, "receive response", res.Err.Stage)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL, Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), "chunk")

	require.NotNil(t, res.Err)
	assert.Equal(t, models.KindTransport, res.Err.Kind)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestFetchAsync(t *testing.T) {
	srv := respond(t, http.StatusOK, `{"data":{"image":"http://x/async.png"}}`)
	c := newTestClient(t, srv.URL, Options{})

	done := make(chan models.SceneResult, 1)
	c.FetchAsync(context.Background(), "async chunk", func(r models.SceneResult) { done <- r })

	select {
	case res := <-done:
		assert.Equal(t, "async chunk", res.Chunk)
		assert.Equal(t, "http://x/async.png", res.ImageURL)
	case <-time.After(2 * time.Second):
		t.Fatal("Test timed out waiting for async scene result")
	}
}

func TestNewClient_RejectsRelativeEndpoint(t *testing.T) {
	_, err := NewClient(http.DefaultClient, &mockLogger{}, Options{Endpoint: "/api"})
	assert.Error(t, err)
}

func TestNewHTTPClient(t *testing.T) {
	for _, proxyURL := range []string{"", "http://127.0.0.1:3128", "socks://127.0.0.1:1080", "socks5://127.0.0.1:1080"} {
		c, err := NewHTTPClient(proxyURL)
		require.NoError(t, err, proxyURL)
		assert.NotNil(t, c.Transport)
	}

	_, err := NewHTTPClient("gopher://127.0.0.1:70")
	assert.Error(t, err)
}
