// Package decode turns YAML or JSON job files into schema.Value documents.
package decode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/pkg/schema"
)

// Format is a source encoding for job documents.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeDecode, "unknown document format %q", s)
	}
}

// FormatFromPath picks the format by extension. Anything other than .json is
// read as YAML, which also accepts JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode reads one document from r. An empty input decodes to null.
func Decode(r io.Reader, format Format) (schema.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return schema.Null(), fmt.Errorf("read document: %w", err)
	}
	return DecodeBytes(data, format)
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte, format Format) (schema.Value, error) {
	var raw any
	switch format {
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return schema.Null(), nil
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return schema.Null(), decodeError(format, err)
		}
		if dec.More() {
			return schema.Null(), schema.NewError(schema.ErrCodeDecode, "json: trailing data after document")
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return schema.Null(), decodeError(format, err)
		}
	default:
		return schema.Null(), schema.NewErrorf(schema.ErrCodeDecode, "unknown document format %q", format)
	}
	return schema.FromAny(raw), nil
}

// File decodes the document stored at path, choosing the format by extension.
func File(path string) (schema.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schema.Null(), schema.NewErrorf(schema.ErrCodeNotFound, "job file %q not found", path).WithCause(err)
		}
		return schema.Null(), fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Decode(f, FormatFromPath(path))
	if err != nil {
		var lintErr *schema.LintError
		if errors.As(err, &lintErr) {
			return schema.Null(), lintErr.WithSource(path)
		}
		return schema.Null(), err
	}
	return doc, nil
}

// Select narrows doc to the single value produced by a jq query, for job
// definitions embedded in a larger file. An empty query returns doc.
func Select(ctx context.Context, engine *expressions.GoJQEngine, doc schema.Value, query string) (schema.Value, error) {
	if query == "" {
		return doc, nil
	}
	results, err := engine.EvaluateAll(ctx, query, doc.Interface())
	if err != nil {
		return schema.Null(), err
	}
	if len(results) != 1 {
		return schema.Null(), schema.NewErrorf(schema.ErrCodeDecode,
			"query %q produced %d values, want exactly one", query, len(results))
	}
	return schema.FromAny(results[0]), nil
}

func decodeError(format Format, err error) *schema.LintError {
	return schema.NewErrorf(schema.ErrCodeDecode, "decode %s document: %s", format, err.Error()).WithCause(err)
}
