package scores

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sbinet/npyio"
)

type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatNPY
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatNPY:
		return "npy"
	default:
		return "text"
	}
}

type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
)

// DetectFormat infers the compression and array format of a score file from
// its name, e.g. "scores.npy", "scores.json.zst" or "scores.txt.gz".
func DetectFormat(name string) (Format, Compression) {
	name = strings.ToLower(path.Base(name))

	compression := CompressionNone
	switch {
	case strings.HasSuffix(name, ".zst"), strings.HasSuffix(name, ".zstd"):
		compression = CompressionZstd
	case strings.HasSuffix(name, ".gz"):
		compression = CompressionGzip
	}
	if compression != CompressionNone {
		name = strings.TrimSuffix(name, path.Ext(name))
	}

	switch path.Ext(name) {
	case ".npy":
		return FormatNPY, compression
	case ".json":
		return FormatJSON, compression
	default:
		return FormatText, compression
	}
}

// Decode reads a score array from r, choosing the decoder from name.
func Decode(r io.Reader, name string) ([]float64, error) {
	format, compression := DetectFormat(name)

	switch compression {
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: failed to create reader: %w", err)
		}
		defer gr.Close()
		r = gr
	}

	switch format {
	case FormatNPY:
		return decodeNPY(r)
	case FormatJSON:
		return decodeJSON(r)
	default:
		return decodeText(r)
	}
}

func decodeNPY(r io.Reader) ([]float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read npy: %w", err)
	}

	var scores []float64
	if err := npyio.Read(bytes.NewReader(raw), &scores); err == nil {
		return scores, nil
	}

	// float32 arrays are common for classifier outputs
	var narrow []float32
	if err := npyio.Read(bytes.NewReader(raw), &narrow); err != nil {
		return nil, fmt.Errorf("decode npy: %w", err)
	}
	scores = make([]float64, len(narrow))
	for i, v := range narrow {
		scores[i] = float64(v)
	}
	return scores, nil
}

type scoresDocument struct {
	Scores []float64 `json:"scores"`
}

func decodeJSON(r io.Reader) ([]float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	var scores []float64
	if err := sonic.Unmarshal(raw, &scores); err == nil {
		return scores, nil
	}

	var doc scoresDocument
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode json: expected an array or {\"scores\": [...]}: %w", err)
	}
	return doc.Scores, nil
}

// decodeText parses numbers separated by whitespace or commas.
func decodeText(r io.Reader) ([]float64, error) {
	var scores []float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == ';'
		})
		for _, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			scores = append(scores, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return scores, nil
}
