package hfimage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meikuraledutech/chat"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	name := FileName(ts)
	assert.Regexp(t, regexp.MustCompile(`^gen_20250304_050607_[0-9a-f]{8}\.png$`), name)
	assert.NotEqual(t, name, FileName(ts))
}

func TestNewDefaults(t *testing.T) {
	g := New(Config{}, nil)
	assert.Equal(t, "https://router.huggingface.co/hf-inference", g.cfg.BaseURL)
	assert.Equal(t, DefaultModel, g.cfg.Model)

	g = New(Config{BaseURL: "http://hf.local/"}, nil)
	assert.Equal(t, "http://hf.local", g.cfg.BaseURL)
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/acme/diffuser", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a red cube", body["inputs"])

		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "images")
	g := New(Config{Token: "hf_test", Model: "acme/diffuser", BaseURL: srv.URL, Dir: dir}, zaptest.NewLogger(t))

	img, err := g.GenerateImage(context.Background(), "a red cube")
	require.NoError(t, err)
	assert.Equal(t, "acme/diffuser", img.Model)
	assert.Equal(t, dir, filepath.Dir(img.Path))

	data, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestGenerateImageMissingToken(t *testing.T) {
	g := New(Config{Dir: t.TempDir()}, nil)

	_, err := g.GenerateImage(context.Background(), "cat")
	assert.ErrorIs(t, err, chat.ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "HF_TOKEN not found")
}

func TestGenerateImageFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model is currently loading"}`))
		}},
		{"not an image", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"oops"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			dir := t.TempDir()
			g := New(Config{Token: "x", BaseURL: srv.URL, Dir: dir}, nil)

			_, err := g.GenerateImage(context.Background(), "cat")
			assert.ErrorIs(t, err, chat.ErrProviderFailed)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
