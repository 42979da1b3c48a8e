package output

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/jonathan/simplejsonspider/internal/detect"
)

// DefaultBaseName is used when the filename template cannot be applied.
const DefaultBaseName = "downloaded_file"

// Resolver derives the destination path and body for a payload. The zero
// value is usable and writes "downloaded_file.<ext>" into the current
// directory.
type Resolver struct {
	// Template is the filename pattern, e.g. "{id}_{title}".
	Template string
	// StorageDir is prepended to the file name. It may be a local directory
	// or a URL-style location such as "s3://bucket/prefix".
	StorageDir string
	// Extension, when set, replaces the extension derived from the content
	// type. A missing leading dot is added.
	Extension string
	// Prettify enables reformatting of types that support it.
	Prettify bool
}

// Resolved is the outcome of resolving one payload.
type Resolved struct {
	// Path is StorageDir joined with Name.
	Path string
	// Name is the base name plus exactly one extension.
	Name string
	// Body is the text to write.
	Body string
	// Type is the content type the payload was resolved as.
	Type detect.Type
	// TemplateErr holds the template problem that caused the fall back to
	// DefaultBaseName, if any.
	TemplateErr *TemplateFormatError
}

// Resolve computes the destination for raw, which has already been classified
// as t. The only error it returns is *MissingTemplateKeyError; every other
// template or formatting problem degrades to a usable result.
func (r *Resolver) Resolve(raw string, t detect.Type) (*Resolved, error) {
	base, templateErr, err := r.baseName(raw)
	if err != nil {
		return nil, err
	}

	ext := r.extension(t)
	name := base
	if !strings.HasSuffix(name, ext) {
		name += ext
	}

	body := raw
	if r.Prettify && detect.ShouldPrettify(t) {
		body = detect.Prettify(raw, t)
	}

	return &Resolved{
		Path:        JoinPath(r.StorageDir, name),
		Name:        name,
		Body:        body,
		Type:        t,
		TemplateErr: templateErr,
	}, nil
}

// baseName applies the template to fields parsed from raw. Payloads of any
// type are tried as JSON since only the field values matter here.
func (r *Resolver) baseName(raw string) (string, *TemplateFormatError, error) {
	fields, ok := FieldsFromJSON(raw)
	if !ok {
		return DefaultBaseName, formatError(r.Template, "payload is not a JSON object"), nil
	}

	base, err := Expand(r.Template, fields)
	if err == nil {
		return base, nil, nil
	}

	var missing *MissingTemplateKeyError
	if errors.As(err, &missing) {
		return "", nil, missing
	}
	var tmplErr *TemplateFormatError
	if errors.As(err, &tmplErr) {
		return DefaultBaseName, tmplErr, nil
	}
	return DefaultBaseName, &TemplateFormatError{Template: r.Template, Message: "expand", Cause: err}, nil
}

func (r *Resolver) extension(t detect.Type) string {
	if r.Extension == "" {
		return detect.Extension(t)
	}
	return NormalizeExtension(r.Extension)
}

// NormalizeExtension returns ext with exactly one leading dot.
func NormalizeExtension(ext string) string {
	return "." + strings.TrimLeft(ext, ".")
}

// JoinPath joins a storage location and a file name. Locations with a URL
// scheme are joined with a forward slash so the scheme survives.
func JoinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.Contains(dir, "://") {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}
