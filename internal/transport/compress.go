package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Content-Encoding values
const (
	EncodingGzip = "gzip"
	EncodingZstd = "zstd"
)

// ErrTooLarge is returned by Decompress when the decoded body exceeds the limit
var ErrTooLarge = errors.New("decoded body too large")

// Compressor encodes payload bodies before they hit the wire
type Compressor struct {
	encoding string
	zstd     *zstd.Encoder
}

// NewCompressor creates a compressor for "none", "gzip" or "zstd".
// An empty scheme means none.
func NewCompressor(scheme string) (*Compressor, error) {
	switch scheme {
	case "", "none":
		return &Compressor{}, nil
	case EncodingGzip:
		return &Compressor{encoding: EncodingGzip}, nil
	case EncodingZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return &Compressor{encoding: EncodingZstd, zstd: enc}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", scheme)
	}
}

// Encoding returns the Content-Encoding header value, empty for none
func (c *Compressor) Encoding() string {
	return c.encoding
}

// Compress encodes body with the configured scheme
func (c *Compressor) Compress(body []byte) ([]byte, error) {
	switch c.encoding {
	case EncodingGzip:
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(body); err != nil {
			return nil, fmt.Errorf("gzip failed: %w", err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("gzip failed: %w", err)
		}
		return buf.Bytes(), nil
	case EncodingZstd:
		return c.zstd.EncodeAll(body, nil), nil
	default:
		return body, nil
	}
}

// Decompress reverses Compress for a Content-Encoding header value. A
// positive limit caps the decoded size; larger bodies fail with
// ErrTooLarge.
func Decompress(encoding string, body []byte, limit int64) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch encoding {
	case "", "identity":
		out = body
	case EncodingGzip:
		out, err = gunzip(body, limit)
	case EncodingZstd:
		out, err = unzstd(body, limit)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return out, nil
}

func gunzip(body []byte, limit int64) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gzip failed: %w", err)
	}
	defer gz.Close()

	var r io.Reader = gz
	if limit > 0 {
		// One extra byte tells an exact fit from an overflow
		r = io.LimitReader(gz, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip failed: %w", err)
	}
	return out, nil
}

func unzstd(body []byte, limit int64) ([]byte, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if limit > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(limit)))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstd failed: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(body, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("zstd failed: %w", err)
	}
	return out, nil
}
