package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// indentWidth is shared by the JSON and YAML formatters.
const indentWidth = 2

// Prettify reformats text according to t. JSON is re-indented, YAML is
// re-encoded in block style, and every other type (XML included) is returned
// unchanged. If text cannot be parsed as t the original is returned, so a
// formatting problem never blocks a write.
func Prettify(text string, t Type) string {
	var (
		out string
		err error
	)
	switch t {
	case JSON:
		out, err = prettifyJSON(text)
	case YAML:
		out, err = prettifyYAML(text)
	default:
		return text
	}
	if err != nil {
		return text
	}
	return out
}

// prettifyJSON re-serializes text with a two-space indent. The token stream
// is walked directly so object key order and number literals are kept as
// received, while string escapes such as \uXXXX are written out as literal
// UTF-8.
func prettifyJSON(text string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := writeJSONValue(&buf, dec, 0); err != nil {
		return "", fmt.Errorf("prettify json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("prettify json: trailing data after value")
	}
	return buf.String(), nil
}

func writeJSONValue(buf *bytes.Buffer, dec *json.Decoder, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		return writeJSONContainer(buf, dec, v, depth)
	case string:
		return writeJSONString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func writeJSONContainer(buf *bytes.Buffer, dec *json.Decoder, open json.Delim, depth int) error {
	isObject := open == '{'
	closing := byte(']')
	if isObject {
		closing = '}'
	}

	buf.WriteByte(byte(open))
	count := 0
	for dec.More() {
		if count > 0 {
			buf.WriteByte(',')
		}
		writeJSONIndent(buf, depth+1)
		if isObject {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("object key is not a string: %v", keyTok)
			}
			if err := writeJSONString(buf, key); err != nil {
				return err
			}
			buf.WriteString(": ")
		}
		if err := writeJSONValue(buf, dec, depth+1); err != nil {
			return err
		}
		count++
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	if count > 0 {
		writeJSONIndent(buf, depth)
	}
	buf.WriteByte(closing)
	return nil
}

func writeJSONIndent(buf *bytes.Buffer, depth int) {
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat(" ", depth*indentWidth))
}

// writeJSONString quotes s without HTML escaping, leaving non-ASCII as is.
func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// prettifyYAML re-encodes a single YAML document with block collections.
// Mapping order and comments survive because the document is handled as a
// node rather than a decoded value. Empty and multi-document streams are
// left alone.
func prettifyYAML(text string) (string, error) {
	doc, err := decodeYAML(text)
	if err != nil {
		return "", fmt.Errorf("prettify yaml: %w", err)
	}
	if doc == nil {
		return "", fmt.Errorf("prettify yaml: no document")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indentWidth)
	blockStyle(doc)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("prettify yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("prettify yaml: %w", err)
	}
	return buf.String(), nil
}

// blockStyle clears flow style on n and all of its children.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, child := range n.Content {
		blockStyle(child)
	}
}
