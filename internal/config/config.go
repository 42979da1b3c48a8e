// Package config provides configuration loading and validation for the spider.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/simplejsonspider/internal/storage"
)

// Environment variables read by FromEnv.
const (
	EnvAPIURL     = "JSONSPIDER_API_URL"
	EnvTemplate   = "JSONSPIDER_FILENAME_TEMPLATE"
	EnvStorageDir = "JSONSPIDER_STORAGE_DIR"
	EnvExtension  = "JSONSPIDER_FILE_EXTENSION"
	EnvS3Endpoint = "JSONSPIDER_S3_ENDPOINT"
	EnvS3Access   = "JSONSPIDER_S3_ACCESS_KEY"
	EnvS3Secret   = "JSONSPIDER_S3_SECRET_KEY"
	EnvS3Region   = "JSONSPIDER_S3_REGION"
	EnvS3UseSSL   = "JSONSPIDER_S3_USE_SSL"
)

// DefaultTimeoutSeconds bounds a single fetch.
const DefaultTimeoutSeconds = 30

// Config holds everything a spider needs. It can be loaded from a JSON or
// YAML file; CLI flags are merged on top.
type Config struct {
	APIURL           string            `json:"api_url,omitempty" yaml:"api_url,omitempty" validate:"required,url"`
	FilenameTemplate string            `json:"filename_template,omitempty" yaml:"filename_template,omitempty" validate:"required"`
	StorageDir       string            `json:"storage_dir,omitempty" yaml:"storage_dir,omitempty" validate:"required"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies          map[string]string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	FileExtension    string            `json:"file_extension,omitempty" yaml:"file_extension,omitempty" validate:"omitempty,excludesall=/"`

	// Pointers distinguish "not set" from false so file values can default
	// to true.
	AutoDetectType  *bool `json:"auto_detect_type,omitempty" yaml:"auto_detect_type,omitempty"`
	PrettifyContent *bool `json:"prettify_content,omitempty" yaml:"prettify_content,omitempty"`

	// SchemaPath names a JSON Schema file that JSON payloads must satisfy
	// before they are written.
	SchemaPath string `json:"schema_path,omitempty" yaml:"schema_path,omitempty"`

	TimeoutSeconds int               `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"gte=0"`
	S3             *storage.S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`
	Verbose        bool              `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error: '%s' %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by the file
// extension (.yaml and .yml are YAML, anything else JSON).
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// FromEnv builds a Config from JSONSPIDER_* environment variables. Unset
// variables leave fields empty.
func FromEnv() Config {
	cfg := Config{
		APIURL:           os.Getenv(EnvAPIURL),
		FilenameTemplate: os.Getenv(EnvTemplate),
		StorageDir:       os.Getenv(EnvStorageDir),
		FileExtension:    os.Getenv(EnvExtension),
	}
	if endpoint := os.Getenv(EnvS3Endpoint); endpoint != "" {
		useSSL, err := strconv.ParseBool(os.Getenv(EnvS3UseSSL))
		if err != nil {
			useSSL = true
		}
		cfg.S3 = &storage.S3Config{
			Endpoint:  endpoint,
			AccessKey: os.Getenv(EnvS3Access),
			SecretKey: os.Getenv(EnvS3Secret),
			Region:    os.Getenv(EnvS3Region),
			UseSSL:    useSSL,
		}
	}
	return cfg
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be an absolute URL"
	case "gte":
		return "must be non-negative"
	case "excludesall":
		return "must not contain path separators"
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. Values already set on c win.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIURL == "" {
		result.APIURL = defaults.APIURL
	}
	if result.FilenameTemplate == "" {
		result.FilenameTemplate = defaults.FilenameTemplate
	}
	if result.StorageDir == "" {
		result.StorageDir = defaults.StorageDir
	}
	if result.FileExtension == "" {
		result.FileExtension = defaults.FileExtension
	}
	if len(result.Headers) == 0 {
		result.Headers = defaults.Headers
	}
	if len(result.Cookies) == 0 {
		result.Cookies = defaults.Cookies
	}
	if result.AutoDetectType == nil {
		result.AutoDetectType = defaults.AutoDetectType
	}
	if result.PrettifyContent == nil {
		result.PrettifyContent = defaults.PrettifyContent
	}
	if result.SchemaPath == "" {
		result.SchemaPath = defaults.SchemaPath
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.S3 == nil {
		result.S3 = defaults.S3
	}
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// AutoDetect reports whether content sniffing is enabled. Defaults to true.
func (c *Config) AutoDetect() bool {
	return c.AutoDetectType == nil || *c.AutoDetectType
}

// Prettify reports whether output reformatting is enabled. Defaults to true.
func (c *Config) Prettify() bool {
	return c.PrettifyContent == nil || *c.PrettifyContent
}

// Timeout returns the fetch timeout.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Bool returns a pointer to b, for populating the optional flags.
func Bool(b bool) *bool {
	return &b
}
