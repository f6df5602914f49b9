package gemini

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meikuraledutech/chat"
)

const okBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello from gemini"}]},"finishReason":"STOP"}]}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(context.Background(), Config{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, chat.ErrMissingAPIKey)
}

func TestGenerate(t *testing.T) {
	var body string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-test:generateContent"), r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	})

	res, err := p.Generate(context.Background(), "say hi", chat.KindGeneral)
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", res.Content)
	assert.Equal(t, "gemini-test", res.Model)
	assert.Contains(t, body, "say hi")
}

func TestGenerateEmptyPrompt(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := p.Generate(context.Background(), "", chat.KindCode)
	assert.ErrorIs(t, err, chat.ErrEmptyPrompt)
}

func TestAnalyzeSendsInlineImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	path := filepath.Join(t.TempDir(), "cube.png")
	require.NoError(t, os.WriteFile(path, png, 0o644))

	var body string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	})

	res, err := p.Analyze(context.Background(), "what is this?", path)
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", res.Content)
	assert.Contains(t, body, "image/png")
	assert.Contains(t, body, "what is this?")

	_, err = p.Analyze(context.Background(), "x", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestModelPerKind(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	}))
	t.Cleanup(srv.Close)

	p, err := New(context.Background(), Config{
		APIKey:  "test-key",
		Model:   "gemini-test",
		Models:  chat.ModelSet{Vision: "gemini-vision", Logic: "gemini-logic", Code: "gemini-code"},
		BaseURL: srv.URL,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	tests := []struct {
		kind chat.TextKind
		want string
	}{
		{chat.KindLogic, "gemini-logic"},
		{chat.KindCode, "gemini-code"},
		{chat.KindGeneral, "gemini-test"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res, err := p.Generate(context.Background(), "hi", tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Model)
			assert.True(t, strings.HasSuffix(path.Load().(string), tt.want+":generateContent"), path.Load())
		})
	}

	img := filepath.Join(t.TempDir(), "cube.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n"), 0o644))
	res, err := p.Analyze(context.Background(), "what is this?", img)
	require.NoError(t, err)
	assert.Equal(t, "gemini-vision", res.Model)
	assert.True(t, strings.HasSuffix(path.Load().(string), "gemini-vision:generateContent"), path.Load())
}

func TestAPIErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"bad model","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := p.Generate(context.Background(), "hi", chat.KindGeneral)
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrProviderFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNetworkErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	})

	res, err := p.Generate(context.Background(), "hi", chat.KindLogic)
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", res.Content)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, failReasonTimeout},
		{&net.OpError{Op: "dial", Err: timeoutErr{}}, failReasonTimeout},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, failReasonNetwork},
		{context.Canceled, failReasonNetwork},
		{errEmptyResponse, failReasonEmpty},
		{errors.New("boom"), failReasonUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyError(tt.err), tt.err.Error())
	}
	assert.True(t, retryable(failReasonTimeout))
	assert.False(t, retryable(failReasonUnknown))
}
