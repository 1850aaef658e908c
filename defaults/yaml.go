package defaults

import (
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

type YAMLDecoder struct {
	*yaml.Decoder
}

// DisallowUnknownFields will disallow unknown fields in the YAML file.
func (d *YAMLDecoder) DisallowUnknownFields() {
	d.Decoder.KnownFields(true)
}

// Decode decodes the next document. An empty document leaves value untouched.
func (d *YAMLDecoder) Decode(value any) error {
	err := d.Decoder.Decode(value)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func NewYAMLDecoder(r io.Reader) Decoder {
	return &YAMLDecoder{
		yaml.NewDecoder(r),
	}
}
