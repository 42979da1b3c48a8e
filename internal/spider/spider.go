// Package spider fetches a payload from one endpoint and stores it under a
// name derived from its content.
package spider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/simplejsonspider/internal/config"
	"github.com/jonathan/simplejsonspider/internal/detect"
	"github.com/jonathan/simplejsonspider/internal/fetch"
	"github.com/jonathan/simplejsonspider/internal/observability"
	"github.com/jonathan/simplejsonspider/internal/output"
	"github.com/jonathan/simplejsonspider/internal/schemas"
	"github.com/jonathan/simplejsonspider/internal/storage"
)

// Spider runs fetch, classify, resolve and write cycles for a fixed
// configuration. It holds no state between cycles.
type Spider struct {
	url        string
	extension  string
	autoDetect bool
	client     *fetch.Client
	writer     storage.Writer
	resolver   output.Resolver
	schema     string
	logger     zerolog.Logger
}

// Option customizes a Spider.
type Option func(*Spider)

// WithWriter replaces the writer chosen from the storage directory.
func WithWriter(w storage.Writer) Option {
	return func(s *Spider) {
		s.writer = w
	}
}

// WithSchema sets the JSON Schema, as document text, that JSON payloads must
// satisfy before they are written. It takes precedence over the config's
// schema path.
func WithSchema(schema string) Option {
	return func(s *Spider) {
		s.schema = schema
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Spider) {
		s.logger = observability.Component(logger, "spider")
	}
}

// New validates cfg and prepares the destination. The storage directory (or
// bucket) is created here, once.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Spider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Spider{
		url:        cfg.APIURL,
		extension:  cfg.FileExtension,
		autoDetect: cfg.AutoDetect(),
		client: fetch.NewClient(&fetch.Options{
			Timeout: cfg.Timeout(),
			Headers: cfg.Headers,
			Cookies: cfg.Cookies,
		}),
		resolver: output.Resolver{
			Template:   cfg.FilenameTemplate,
			StorageDir: cfg.StorageDir,
			Extension:  cfg.FileExtension,
			Prettify:   cfg.Prettify(),
		},
		logger: zerolog.Nop(),
	}
	if cfg.SchemaPath != "" {
		data, err := os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return nil, &schemas.SchemaLoadError{Path: cfg.SchemaPath, Message: "failed to read schema", Cause: err}
		}
		s.schema = string(data)
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.writer == nil {
		w, err := storage.New(ctx, cfg.StorageDir, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare storage: %w", err)
		}
		s.writer = w
	}

	return s, nil
}

// URL returns the endpoint the spider fetches.
func (s *Spider) URL() string {
	return s.url
}

// FetchContent downloads the payload and determines its type. A configured
// file extension names the type directly; otherwise the content is sniffed,
// or only checked for JSON when auto-detection is off.
func (s *Spider) FetchContent(ctx context.Context) (string, detect.Type, error) {
	result, err := s.client.Get(ctx, s.url)
	if err != nil {
		return "", "", err
	}
	s.logger.Debug().
		Str("url", s.url).
		Int("status", result.StatusCode).
		Int("bytes", len(result.Body)).
		Str("content_type", result.ContentType).
		Msg("fetched payload")

	t := s.contentType(result.Body)
	return result.Body, t, nil
}

func (s *Spider) contentType(content string) detect.Type {
	switch {
	case s.extension != "":
		t, known := detect.ParseType(s.extension)
		s.logger.Debug().Str("extension", s.extension).Bool("known", known).Str("type", t.String()).Msg("type from file extension")
		return t
	case s.autoDetect:
		t := detect.Classify(content)
		s.logger.Debug().Str("type", t.String()).Msg("detected content type")
		return t
	case json.Valid([]byte(strings.TrimSpace(content))):
		return detect.JSON
	default:
		return detect.Text
	}
}

// SaveContent resolves the destination for content and writes it. Nothing is
// written unless resolution succeeds and, when a schema is set, a JSON body
// validates against it.
func (s *Spider) SaveContent(ctx context.Context, content string, t detect.Type) (*output.Resolved, error) {
	res, err := s.resolver.Resolve(content, t)
	if err != nil {
		return nil, err
	}
	if res.TemplateErr != nil {
		s.logger.Warn().Err(res.TemplateErr).Str("name", res.Name).Msg("filename template not applied, using default name")
	}

	if s.schema != "" {
		if res.Type != detect.JSON {
			s.logger.Warn().Str("type", res.Type.String()).Msg("schema set but payload is not JSON, skipping validation")
		} else if err := schemas.ValidateJSONString(s.schema, res.Body); err != nil {
			return nil, err
		}
	}

	if err := s.writer.WriteText(ctx, res.Path, res.Body); err != nil {
		return nil, err
	}
	s.logger.Info().Str("path", res.Path).Str("type", res.Type.String()).Msg("file saved")
	return res, nil
}

// Run performs one fetch and save cycle.
func (s *Spider) Run(ctx context.Context) (*output.Resolved, error) {
	content, t, err := s.FetchContent(ctx)
	if err != nil {
		return nil, err
	}
	return s.SaveContent(ctx, content, t)
}

// FetchJSON downloads the payload and decodes it, failing with
// *NotJSONError unless it is JSON. Numbers decode as json.Number.
func (s *Spider) FetchJSON(ctx context.Context) (any, error) {
	content, t, err := s.FetchContent(ctx)
	if err != nil {
		return nil, err
	}
	if t != detect.JSON {
		return nil, &NotJSONError{Detected: t}
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &NotJSONError{Detected: t, Cause: err}
	}
	return v, nil
}

// SaveJSON writes an already decoded value as indented JSON, skipping
// classification.
func (s *Spider) SaveJSON(ctx context.Context, v any) (*output.Resolved, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return s.SaveContent(ctx, strings.TrimSuffix(buf.String(), "\n"), detect.JSON)
}
