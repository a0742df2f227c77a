// internal/network/compression.go
package network

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is what a current desktop browser advertises. Some
// storefront APIs refuse clients that do not ask for brotli.
const acceptEncoding = "br, gzip, deflate"

var (
	gzipReaderPool = sync.Pool{New: func() interface{} { return new(gzip.Reader) }}
	brotliPool     = sync.Pool{New: func() interface{} { return brotli.NewReader(nil) }}
	emptyReader    = strings.NewReader("")
)

// CompressionMiddleware is an http.RoundTripper that advertises compression
// support and transparently decodes the response body.
type CompressionMiddleware struct {
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport, defaulting to http.DefaultTransport.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		// Clone before mutating; RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// decodedBody closes the decoder, returns pooled readers and closes the raw body.
type decodedBody struct {
	io.ReadCloser
	raw     io.ReadCloser
	release func()
}

func (b *decodedBody) Close() error {
	err := errors.Join(b.ReadCloser.Close(), b.raw.Close())
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return err
}

// DecompressResponse wraps resp.Body with decoders for every Content-Encoding
// layer, applied in reverse order. On success the encoding and length headers
// are removed. On error the body may be partially consumed.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	var layers []string
	for _, value := range encodings {
		for _, layer := range strings.Split(value, ",") {
			layers = append(layers, strings.ToLower(strings.TrimSpace(layer)))
		}
	}
	for i := len(layers) - 1; i >= 0; i-- {
		if err := decodeLayer(resp, layers[i]); err != nil {
			return err
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

func decodeLayer(resp *http.Response, encoding string) error {
	var (
		reader  io.ReadCloser
		release func()
	)

	switch encoding {
	case "gzip", "x-gzip":
		zr := gzipReaderPool.Get().(*gzip.Reader)
		if err := zr.Reset(resp.Body); err != nil {
			gzipReaderPool.Put(zr)
			return fmt.Errorf("gzip initialization error: %w", err)
		}
		reader = zr
		release = func() {
			_ = zr.Reset(emptyReader)
			gzipReaderPool.Put(zr)
		}

	case "br":
		br := brotliPool.Get().(*brotli.Reader)
		if err := br.Reset(resp.Body); err != nil {
			brotliPool.Put(br)
			return fmt.Errorf("brotli initialization error: %w", err)
		}
		reader = io.NopCloser(br)
		release = func() {
			_ = br.Reset(emptyReader)
			brotliPool.Put(br)
		}

	case "deflate":
		zr, err := inflate(resp.Body)
		if err != nil {
			return fmt.Errorf("deflate initialization error: %w", err)
		}
		reader = zr

	case "identity", "":
		return nil

	default:
		return fmt.Errorf("unsupported Content-Encoding layer: %s", encoding)
	}

	resp.Body = &decodedBody{ReadCloser: reader, raw: resp.Body, release: release}
	return nil
}

// inflate decodes "deflate", which servers send either zlib-wrapped (as the
// RFC says) or raw. The two-byte zlib header is checked before committing.
func inflate(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr[0], hdr[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
