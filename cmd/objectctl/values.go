package main

import (
	"fmt"
	"strings"

	"github.com/zeusync/objectsync/internal/core/codec"
	"github.com/zeusync/objectsync/sdk/go/client"
)

// parseAssignment splits key=value and decodes the value.
func parseAssignment(factory codec.ObjectFactory, s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid assignment %q, want key=value", s)
	}
	value, err := parseValue(factory, raw)
	return key, value, err
}

// parseValue decodes raw as a JSON value in wire format, falling back to the
// literal string.
func parseValue(factory codec.ObjectFactory, raw string) (any, error) {
	wrapped, err := codec.Unmarshal([]byte(`{"v":` + raw + `}`))
	if err != nil {
		return raw, nil
	}
	return codec.NewDecoder(factory).DecodeValue(wrapped["v"])
}

// render converts an object to its wire representation for printing.
func render(obj *client.Object) (map[string]any, error) {
	out := map[string]any{
		"className": obj.ClassName(),
	}
	if id := obj.ObjectID(); id != "" {
		out["objectId"] = id
	}
	if t := obj.CreatedAt(); !t.IsZero() {
		out["createdAt"] = codec.FormatDate(t)
	}
	if t := obj.UpdatedAt(); !t.IsZero() {
		out["updatedAt"] = codec.FormatDate(t)
	}
	var enc codec.Encoder
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		encoded, err := enc.EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = encoded
	}
	return out, nil
}
