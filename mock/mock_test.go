package mock

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/chat"
)

func TestBackend(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()

	res, err := b.Generate(ctx, "sort a list", chat.KindCode)
	require.NoError(t, err)
	assert.Equal(t, "[code] sort a list", res.Content)
	assert.Equal(t, "mock-code", res.Model)

	img, err := b.GenerateImage(ctx, "red cube")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(img.Path))

	f, err := os.Open(img.Path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Bounds().Dx())

	res, err = b.Analyze(ctx, "what is it", img.Path)
	require.NoError(t, err)
	assert.Contains(t, res.Content, filepath.Base(img.Path))

	_, err = b.Analyze(ctx, "x", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
