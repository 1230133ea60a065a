package httputils

import (
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"io"
	"net/http"
	"slices"
	"strings"
)

type ContentEncoding string

const (
	ContentEncodingNone ContentEncoding = ""
	ContentEncodingGzip ContentEncoding = "gzip"
	ContentEncodingZstd ContentEncoding = "zstd"
)

func SelectEncodingServerPreference(acceptEncoding string) (contentEncoding ContentEncoding) {
	encodings := strings.Split(acceptEncoding, ",")
	for i := range encodings {
		//drop preference
		e := strings.Split(encodings[i], ";")
		encodings[i] = strings.TrimSpace(e[0])
	}

	if slices.Contains(encodings, string(ContentEncodingZstd)) {
		return ContentEncodingZstd
	} else if slices.Contains(encodings, string(ContentEncodingGzip)) {
		return ContentEncodingGzip
	} else {
		return ContentEncodingNone
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// NewCompressedWriter picks an encoding the client accepts and sets the matching headers.
// It must be called before the status is written, Close flushes the encoder.
func NewCompressedWriter(r *http.Request, writer http.ResponseWriter) (io.WriteCloser, error) {
	writer.Header().Add("vary", "accept-encoding")
	switch e := SelectEncodingServerPreference(r.Header.Get("accept-encoding")); e {
	case ContentEncodingZstd:
		w, err := zstd.NewWriter(writer, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		writer.Header().Set("content-encoding", string(e))
		return w, nil
	case ContentEncodingGzip:
		writer.Header().Set("content-encoding", string(e))
		return gzip.NewWriter(writer), nil
	default:
		return nopCloser{writer}, nil
	}
}
