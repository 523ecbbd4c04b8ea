package server

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// ZstdMiddleware returns a Fiber middleware that decompresses request bodies
// sent with Content-Encoding: zstd and, when the client accepts zstd, compresses
// the response. limit caps the decompressed body the same way Fiber's BodyLimit
// caps the raw one; a non-positive limit means fiber.DefaultBodyLimit.
func ZstdMiddleware(limit int) fiber.Handler {
	if limit <= 0 {
		limit = fiber.DefaultBodyLimit
	}

	return func(c *fiber.Ctx) error {
		if strings.Contains(strings.ToLower(c.Get(fiber.HeaderContentEncoding)), "zstd") {
			out, err := decompressBody(c.Request().Body(), limit)
			switch {
			case errors.Is(err, errBodyTooLarge):
				log.Warn().Int("limit", limit).Msg("zstd: decompressed request body exceeds limit")
				return c.Status(fiber.StatusRequestEntityTooLarge).SendString("decompressed request body too large")
			case err != nil:
				log.Error().Err(err).Msg("zstd: failed to decompress request body")
				return c.Status(fiber.StatusBadRequest).SendString("invalid zstd request body")
			}

			c.Request().SetBody(out)
			c.Request().Header.Set(fiber.HeaderContentLength, strconv.Itoa(len(out)))
			c.Request().Header.Del(fiber.HeaderContentEncoding)
		}

		if err := c.Next(); err != nil {
			return err
		}

		if !strings.Contains(strings.ToLower(c.Get(fiber.HeaderAcceptEncoding)), "zstd") {
			return nil
		}
		comp := responseEncoder.EncodeAll(c.Response().Body(), nil)
		c.Response().SetBody(comp)
		c.Set(fiber.HeaderContentEncoding, "zstd")
		c.Set(fiber.HeaderVary, fiber.HeaderAcceptEncoding)
		c.Set(fiber.HeaderContentLength, strconv.Itoa(len(comp)))
		return nil
	}
}

// responseEncoder is shared by all requests; EncodeAll is safe for concurrent use.
var responseEncoder, _ = zstd.NewWriter(nil)

var errBodyTooLarge = errors.New("decompressed body exceeds limit")

// decompressBody inflates a zstd body, reading at most limit bytes of output.
func decompressBody(body []byte, limit int) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(body), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, errBodyTooLarge
	}
	return out, nil
}
