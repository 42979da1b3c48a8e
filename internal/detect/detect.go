// Package detect classifies fetched payloads by sniffing their content and
// maps the result to file extensions and formatting rules.
package detect

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the detected content format of a payload.
type Type string

const (
	// JSON is any valid JSON value, including bare scalars.
	JSON Type = "json"
	// YAML is a YAML document with structural markers.
	YAML Type = "yaml"
	// VTT is a WebVTT subtitle track.
	VTT Type = "vtt"
	// XML is anything shaped like markup.
	XML Type = "xml"
	// CSV is delimiter-separated rows with a consistent column count.
	CSV Type = "csv"
	// Text is the fallback for everything else.
	Text Type = "text"
)

// String returns the tag name.
func (t Type) String() string {
	return string(t)
}

var vttTimestamp = regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}`)

// csvSeparators are tried in order; the first consistent one wins.
var csvSeparators = []string{",", ";", "\t"}

// rules is evaluated top to bottom against the trimmed payload. VTT must come
// before JSON and YAML because cue lines contain colons.
var rules = []struct {
	match func(string) bool
	typ   Type
}{
	{isVTT, VTT},
	{isJSON, JSON},
	{isYAML, YAML},
	{isXML, XML},
	{isCSV, CSV},
}

// Classify returns the content type of text. It never fails; anything that
// matches no rule is Text.
func Classify(text string) Type {
	trimmed := strings.TrimSpace(text)
	for _, r := range rules {
		if r.match(trimmed) {
			return r.typ
		}
	}
	return Text
}

func isVTT(content string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(lines[0]), "WEBVTT") {
		return true
	}
	return vttTimestamp.MatchString(content)
}

func isJSON(content string) bool {
	return json.Valid([]byte(content))
}

func isYAML(content string) bool {
	if _, err := decodeYAML(content); err != nil {
		return false
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "...") {
			return true
		}
	}
	// Plain prose parses as a scalar document, so a bare successful parse is
	// not enough. Sentences with a colon still land here.
	return strings.Contains(content, ":") &&
		!strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[")
}

func isXML(content string) bool {
	return strings.HasPrefix(content, "<?xml") ||
		(strings.HasPrefix(content, "<") && strings.HasSuffix(content, ">"))
}

func isCSV(content string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return false
	}
	first := lines[0]
	next := lines[1:min(3, len(lines))]

	for _, sep := range csvSeparators {
		want := strings.Count(first, sep)
		if want == 0 {
			continue
		}
		consistent := true
		for _, line := range next {
			if strings.Count(line, sep) != want {
				consistent = false
				break
			}
		}
		if consistent {
			return true
		}
	}
	return false
}

// errMultipleDocuments rejects streams holding more than one YAML document.
var errMultipleDocuments = errors.New("expected a single YAML document")

// decodeYAML parses content as exactly one YAML document. An empty stream
// yields a nil node and no error; a second document is an error.
func decodeYAML(content string) (*yaml.Node, error) {
	dec := yaml.NewDecoder(strings.NewReader(content))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, errMultipleDocuments
	}
	return &doc, nil
}

// ParseType maps a tag or file extension such as "json", ".yml" or "txt" to a
// Type. The boolean is false for names outside the known set, in which case
// Text is returned.
func ParseType(name string) (Type, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "json":
		return JSON, true
	case "yaml", "yml":
		return YAML, true
	case "vtt":
		return VTT, true
	case "xml":
		return XML, true
	case "csv":
		return CSV, true
	case "text", "txt":
		return Text, true
	default:
		return Text, false
	}
}

// Extension returns the file extension, with leading dot, for t. Unknown
// types map to ".txt".
func Extension(t Type) string {
	switch t {
	case JSON:
		return ".json"
	case YAML:
		return ".yaml"
	case VTT:
		return ".vtt"
	case XML:
		return ".xml"
	case CSV:
		return ".csv"
	default:
		return ".txt"
	}
}

// ShouldPrettify reports whether content of type t is reformatted before
// writing. VTT and CSV cannot be restructured without loss.
func ShouldPrettify(t Type) bool {
	switch t {
	case JSON, YAML, XML:
		return true
	default:
		return false
	}
}
