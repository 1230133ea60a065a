package httputils

import (
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"net/http"
	"strings"
)

type errorResult struct {
	Error string `json:"error"`
}

func EncodeJson(r *http.Request, writer http.ResponseWriter, d any) error {
	return encodeJson(r, writer, http.StatusOK, d)
}

// EncodeJsonError answers with status and err as {"error": "..."}.
func EncodeJsonError(r *http.Request, writer http.ResponseWriter, status int, err error) error {
	return encodeJson(r, writer, status, errorResult{Error: err.Error()})
}

func encodeJson(r *http.Request, writer http.ResponseWriter, status int, d any) error {
	writer.Header().Set("content-type", "application/json; charset=utf-8")
	w, err := NewCompressedWriter(r, writer)
	if err != nil {
		return err
	}
	writer.WriteHeader(status)

	encoder := utils.NewJSONEncoder(w)
	if strings.Index(strings.ToLower(r.Header.Get("user-agent")), "mozilla") != -1 {
		encoder.SetIndent("", "    ")
	}
	if err = encoder.EncodeWithOption(d, utils.JsonEncodeOptions...); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// StreamJsonSlice writes every value of slice as one JSON list, encoding one entry at a time.
func StreamJsonSlice[T any](r *http.Request, writer http.ResponseWriter, slice []T) error {
	writer.Header().Set("content-type", "application/json; charset=utf-8")
	w, err := NewCompressedWriter(r, writer)
	if err != nil {
		return err
	}
	defer w.Close()

	encoder := utils.NewJSONEncoder(w)
	if strings.Index(strings.ToLower(r.Header.Get("user-agent")), "mozilla") != -1 {
		encoder.SetIndent("", "    ")
	}
	// Write start of JSON list
	_, _ = w.Write([]byte{'[', 0xa})
	for i, v := range slice {
		if i > 0 {
			// Write separator between list fields
			_, _ = w.Write([]byte{',', 0xa})
		}
		if err := encoder.EncodeWithOption(v, utils.JsonEncodeOptions...); err != nil {
			return err
		}
	}
	// Write end of JSON list
	_, err = w.Write([]byte{0xa, ']'})
	return err
}
