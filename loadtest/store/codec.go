// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes the records a Repository persists.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewCodec returns the codec with the given name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("store: unknown codec %q", name)
}

// JSONCodec stores records as plain JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec stores records as MessagePack, reusing the json struct tags
// so that both encodings share field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
