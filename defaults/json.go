package defaults

import (
	"encoding/json"
	"io"
)

func NewJSONDecoder(r io.Reader) Decoder {
	return json.NewDecoder(r)
}
