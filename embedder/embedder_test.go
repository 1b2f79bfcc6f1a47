package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"simbench/imageprocessor"
	"simbench/types"
)

// meanEmbedder returns the per-channel mean of the image and counts calls
type meanEmbedder struct {
	calls int
	err   error
}

func (m *meanEmbedder) Embed(ctx context.Context, img gocv.Mat) (types.Embedding, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	mean := img.Mean()
	return types.Embedding{float32(mean.Val1), float32(mean.Val2), float32(mean.Val3)}, nil
}

func (m *meanEmbedder) Name() string { return "mean" }
func (m *meanEmbedder) Close() error { return nil }

func writeSolidPNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestPipelineEmbedsRGB(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "red.png")
	writeSolidPNG(t, path, color.RGBA{R: 255, A: 255})

	emb := &meanEmbedder{}
	p := NewPipeline(imageprocessor.NewRegistry(), emb, nil)

	vec, err := p.Vector(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, types.Embedding{255, 0, 0}, vec)
}

func TestPipelineCachesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	writeSolidPNG(t, filepath.Join(dir, "a.png"), color.RGBA{G: 200, A: 255})
	writeSolidPNG(t, filepath.Join(dir, "b.png"), color.RGBA{G: 200, A: 255})
	writeSolidPNG(t, filepath.Join(dir, "c.png"), color.RGBA{B: 90, A: 255})

	cache, err := NewCache(8)
	require.NoError(t, err)
	emb := &meanEmbedder{}
	p := NewPipeline(imageprocessor.NewRegistry(), emb, cache)

	for _, name := range []string{"a.png", "b.png", "c.png", "a.png"} {
		_, err := p.Vector(context.Background(), filepath.Join(dir, name))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, emb.calls)
	assert.Equal(t, 2, cache.Len())
}

func TestPipelineErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writeSolidPNG(t, path, color.RGBA{A: 255})

	t.Run("embedder failure", func(t *testing.T) {
		boom := errors.New("inference failed")
		p := NewPipeline(imageprocessor.NewRegistry(), &meanEmbedder{err: boom}, nil)
		_, err := p.Vector(context.Background(), path)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("decode failure", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.png")
		require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
		p := NewPipeline(imageprocessor.NewRegistry(), &meanEmbedder{}, nil)
		_, err := p.Vector(context.Background(), bad)
		assert.ErrorIs(t, err, imageprocessor.ErrDecode)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := NewPipeline(imageprocessor.NewRegistry(), &meanEmbedder{}, nil)
		_, err := p.Vector(ctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCacheReturnsCopies(t *testing.T) {
	cache, err := NewCache(2)
	require.NoError(t, err)

	key := cache.Key("m", []byte("pixels"))
	assert.NotEqual(t, key, cache.Key("other", []byte("pixels")))

	vec := types.Embedding{1, 2}
	cache.Add(key, vec)
	vec[0] = 9

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, types.Embedding{1, 2}, got)
}

func TestPreprocessorNormalisesChannels(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 51, 0), 10, 12, gocv.MatTypeCV8UC3)
	defer img.Close()

	prep := Preprocessor{Size: image.Pt(4, 4), Mean: ImageNetMean, Std: ImageNetStd}
	blob, err := prep.Blob(img)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, []int{1, 3, 4, 4}, blob.Size())

	data, err := blob.DataPtrFloat32()
	require.NoError(t, err)
	plane := 16
	assert.InDelta(t, (1-0.485)/0.229, data[0], 1e-4)
	assert.InDelta(t, (0-0.456)/0.224, data[plane], 1e-4)
	assert.InDelta(t, (0.2-0.406)/0.225, data[2*plane], 1e-4)
}

func TestPreprocessorRejectsGray(t *testing.T) {
	img := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer img.Close()

	_, err := Preprocessor{Size: image.Pt(2, 2)}.Blob(img)
	assert.Error(t, err)
}

func TestDefaultDNNConfigReadsPenultimateLayer(t *testing.T) {
	cfg := DefaultDNNConfig("alexnet.onnx")
	assert.NotEmpty(t, cfg.Layer)
	assert.Equal(t, DefaultLayer, cfg.Layer)
	assert.Equal(t, 224, cfg.InputSize)
	assert.Equal(t, ImageNetMean, cfg.Mean)
	assert.Equal(t, ImageNetStd, cfg.Std)
}

func TestNewDNNEmbedderMissingModel(t *testing.T) {
	_, err := NewDNNEmbedder(DNNConfig{Model: filepath.Join(t.TempDir(), "alexnet.onnx"), InputSize: 224})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewDNNEmbedder(DNNConfig{})
	assert.Error(t, err)
}

func TestRemoteEmbedder(t *testing.T) {
	var gotImage bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image")
		if err == nil {
			data, _ := io.ReadAll(file)
			_, decodeErr := png.Decode(bytes.NewReader(data))
			gotImage = decodeErr == nil
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []float32{0.5, 0.25}})
	}))
	defer srv.Close()

	emb, err := NewRemoteEmbedder(srv.URL, 5*time.Second)
	require.NoError(t, err)
	defer emb.Close()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()

	vec, err := emb.Embed(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, types.Embedding{0.5, 0.25}, vec)
	assert.True(t, gotImage)
	assert.Contains(t, emb.Name(), srv.URL)
}

func TestRemoteEmbedderErrors(t *testing.T) {
	_, err := NewRemoteEmbedder("not a url", time.Second)
	assert.Error(t, err)

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 2, 2, gocv.MatTypeCV8UC3)
	defer img.Close()

	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		emb, err := NewRemoteEmbedder(srv.URL, time.Second)
		require.NoError(t, err)
		_, err = emb.Embed(context.Background(), img)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("empty features", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"features": []}`))
		}))
		defer srv.Close()

		emb, err := NewRemoteEmbedder(srv.URL, time.Second)
		require.NoError(t, err)
		_, err = emb.Embed(context.Background(), img)
		assert.Error(t, err)
	})
}
