package scores

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/autothreshold/internal/config"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader(&config.ScoreSourceEnvConfig{
		DownloadTimeout: 5 * time.Second,
		DownloadRetries: 2,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
	})
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestNewLoader_NilConfig(t *testing.T) {
	_, err := NewLoader(nil)
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		format      Format
		compression Compression
	}{
		{"scores.npy", FormatNPY, CompressionNone},
		{"/data/Scores.JSON", FormatJSON, CompressionNone},
		{"scores.txt", FormatText, CompressionNone},
		{"scores", FormatText, CompressionNone},
		{"scores.json.zst", FormatJSON, CompressionZstd},
		{"scores.npy.gz", FormatNPY, CompressionGzip},
		{"scores.csv.zstd", FormatText, CompressionZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, compression := DetectFormat(tt.name)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.compression, compression)
		})
	}
}

func TestLoad_Text(t *testing.T) {
	p := writeFile(t, "scores.txt", []byte("# classifier confidences\n0.1 0.2\n0.3,0.4\n\n0.5\t0.6\n"))

	got, err := newTestLoader(t).Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, got)
}

func TestLoad_TextBadToken(t *testing.T) {
	p := writeFile(t, "scores.txt", []byte("0.1\n0.2 oops\n"))

	_, err := newTestLoader(t).Load(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad_JSON(t *testing.T) {
	array := writeFile(t, "scores.json", []byte(`[0.25, 0.5, 0.75]`))
	doc := writeFile(t, "doc.json", []byte(`{"scores": [0.9, 0.8]}`))
	l := newTestLoader(t)

	got, err := l.Load(context.Background(), array)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, got)

	got, err = l.Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.8}, got)
}

func TestLoad_NPY(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []float64{0.1, 0.5, 0.9}))
	p64 := writeFile(t, "scores.npy", buf.Bytes())

	buf.Reset()
	require.NoError(t, npyio.Write(&buf, []float32{0.25, 0.75}))
	p32 := writeFile(t, "scores32.npy", buf.Bytes())

	l := newTestLoader(t)
	got, err := l.Load(context.Background(), p64)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, got)

	got, err = l.Load(context.Background(), p32)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, got)
}

func TestLoad_Compressed(t *testing.T) {
	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(`[0.1, 0.2, 0.3]`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var gbuf bytes.Buffer
	gw := gzip.NewWriter(&gbuf)
	_, err = gw.Write([]byte("0.4\n0.5\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	l := newTestLoader(t)
	got, err := l.Load(context.Background(), writeFile(t, "scores.json.zst", zbuf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got)

	got, err = l.Load(context.Background(), writeFile(t, "scores.txt.gz", gbuf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.5}, got)
}

func TestLoad_Empty(t *testing.T) {
	p := writeFile(t, "scores.json", []byte(`[]`))

	_, err := newTestLoader(t).Load(context.Background(), p)
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newTestLoader(t).Load(context.Background(), filepath.Join(t.TempDir(), "nope.npy"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_RemoteRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/runs/42/scores.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"scores": [0.3, 0.6]}`))
	}))
	defer ts.Close()

	got, err := newTestLoader(t).Load(context.Background(), ts.URL+"/runs/42/scores.json?token=x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.6}, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoad_RemoteNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such run"))
	}))
	defer ts.Close()

	_, err := newTestLoader(t).Load(context.Background(), ts.URL+"/scores.txt")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 404"), err.Error())
}
