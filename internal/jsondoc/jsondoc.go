// Package jsondoc provides a JSON document target for field
// interception.
//
// A Document wraps a JSON byte buffer and exposes its values as fields
// addressed by gjson path syntax ("user.name", "items.3"). Reads
// resolve through gjson; committed writes re-serialize the buffer via
// sjson, so the document stays the single source of truth.
package jsondoc

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ErrInvalidJSON indicates the input is not well-formed JSON.
var ErrInvalidJSON = errors.New("invalid json")

// Document is a mutable JSON document addressed by gjson paths. It
// implements the interception engine's FieldReader and FieldWriter, so
// hooks can observe and transform document values.
//
// Documents are not safe for concurrent use.
type Document struct {
	raw []byte
}

// New creates a Document from raw JSON.
func New(raw []byte) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	// Own the buffer; gjson results alias their input.
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &Document{raw: buf}, nil
}

// Parse creates a Document from a JSON string.
func Parse(s string) (*Document, error) {
	return New([]byte(s))
}

// ReadField resolves a gjson path to its decoded Go value. Numbers
// decode as float64, objects as map[string]any, arrays as []any.
func (d *Document) ReadField(path string) (any, bool) {
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// WriteField sets a gjson path to the given value, creating
// intermediate objects as needed.
func (d *Document) WriteField(path string, value any) error {
	out, err := sjson.SetBytes(d.raw, path, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	d.raw = out
	return nil
}

// Delete removes a path from the document.
func (d *Document) Delete(path string) error {
	out, err := sjson.DeleteBytes(d.raw, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	d.raw = out
	return nil
}

// Bytes returns the document's current serialized form.
func (d *Document) Bytes() []byte {
	return d.raw
}

// String returns the document as a compact JSON string.
func (d *Document) String() string {
	return string(pretty.Ugly(d.raw))
}

// Pretty returns the document formatted for display.
func (d *Document) Pretty() string {
	return string(pretty.Pretty(d.raw))
}
