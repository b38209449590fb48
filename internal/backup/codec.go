package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown backup format %q (want json or yaml)", s)
	}
}

// FormatFromPath picks a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Write encodes doc in the given format.
func Write(w io.Writer, doc *Document, format Format) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	switch format {
	case FormatJSON, "":
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatYAML:
		return writeYAML(w, data)
	default:
		return fmt.Errorf("unknown backup format %q", format)
	}
}

// writeYAML re-encodes JSON as block-style YAML. Going through yaml.Node
// keeps the JSON key order.
func writeYAML(w io.Writer, data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("encode backup as yaml: %w", err)
	}
	clearStyle(&root)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return fmt.Errorf("encode backup as yaml: %w", err)
	}
	return enc.Close()
}

// clearStyle drops the flow and quoting styles inherited from JSON. The
// encoder still quotes strings that would otherwise read back as another
// type.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// Read decodes a document in the given format and returns it as JSON, the
// form Validate accepts.
func Read(r io.Reader, format Format) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	switch format {
	case FormatJSON, "":
		return bytes.TrimSpace(data), nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode yaml backup: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("decode yaml backup: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown backup format %q", format)
	}
}
