package utils

import (
	"github.com/goccy/go-json"
	"io"
)

var JsonEncodeOptions = []json.EncodeOptionFunc{json.DisableHTMLEscape()}

func MarshalJSON(val any) ([]byte, error) {
	return json.MarshalWithOption(val, JsonEncodeOptions...)
}

func UnmarshalJSON(data []byte, val any) error {
	return json.Unmarshal(data, val)
}

func NewJSONEncoder(writer io.Writer) *json.Encoder {
	return json.NewEncoder(writer)
}
