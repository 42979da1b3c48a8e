package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/simplejsonspider/internal/config"
	"github.com/jonathan/simplejsonspider/internal/observability"
	"github.com/jonathan/simplejsonspider/internal/output"
	"github.com/jonathan/simplejsonspider/internal/spider"
)

type fetchOptions struct {
	url        string
	template   string
	dir        string
	ext        string
	configPath string
	schemaPath string
	headers    []string
	cookies    []string
	autoDetect bool
	prettify   bool
	strict     bool
	timeout    int
}

func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a payload and save it to disk",
		Long: "Fetches the configured URL, detects the payload type, and writes it under a name built from " +
			"the filename template. Flags override the config file, which overrides JSONSPIDER_* environment variables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.url, "url", "u", "", "URL to fetch")
	flags.StringVarP(&opts.template, "template", "t", "", "Filename template, e.g. \"{id}_{title}\"")
	flags.StringVarP(&opts.dir, "dir", "o", "", "Storage directory or s3://bucket/prefix")
	flags.StringVar(&opts.ext, "ext", "", "Force the file extension (also selects the content type)")
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a JSON or YAML config file")
	flags.StringVar(&opts.schemaPath, "schema", "", "JSON Schema file that JSON payloads must satisfy before saving")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header as \"Name: value\" (repeatable)")
	flags.StringArrayVar(&opts.cookies, "cookie", nil, "Request cookie as \"name=value\" (repeatable)")
	flags.BoolVar(&opts.autoDetect, "auto-detect", true, "Detect the payload type from its content")
	flags.BoolVar(&opts.prettify, "prettify", true, "Reformat JSON and YAML payloads before saving")
	flags.BoolVar(&opts.strict, "strict", false, "Fail unless the payload is JSON")
	flags.IntVar(&opts.timeout, "timeout", 0, "Request timeout in seconds (default 30)")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := buildConfig(cmd, opts, verbose)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	ctx := cmd.Context()

	s, err := spider.New(ctx, cfg, spider.WithLogger(logger))
	if err != nil {
		return err
	}

	var res *output.Resolved
	if opts.strict {
		v, err := s.FetchJSON(ctx)
		if err != nil {
			return err
		}
		res, err = s.SaveJSON(ctx, v)
		if err != nil {
			return err
		}
	} else {
		res, err = s.Run(ctx)
		if err != nil {
			return err
		}
	}

	if cfg.Verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintResolved(s.URL(), res)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "file saved: %s (type: %s)\n", res.Path, res.Type)
	return nil
}

// buildConfig layers flags over the config file over the environment.
func buildConfig(cmd *cobra.Command, opts *fetchOptions, verbose bool) (config.Config, error) {
	base := config.FromEnv()
	if opts.configPath != "" {
		fileCfg, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		base = fileCfg.MergeWithDefaults(base)
	}

	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return config.Config{}, err
	}
	cookies, err := parseCookies(opts.cookies)
	if err != nil {
		return config.Config{}, err
	}

	flagCfg := config.Config{
		APIURL:           opts.url,
		FilenameTemplate: opts.template,
		StorageDir:       opts.dir,
		FileExtension:    opts.ext,
		SchemaPath:       opts.schemaPath,
		Headers:          headers,
		Cookies:          cookies,
		TimeoutSeconds:   opts.timeout,
		Verbose:          verbose,
	}
	if cmd.Flags().Changed("auto-detect") {
		flagCfg.AutoDetectType = config.Bool(opts.autoDetect)
	}
	if cmd.Flags().Changed("prettify") {
		flagCfg.PrettifyContent = config.Bool(opts.prettify)
	}

	return flagCfg.MergeWithDefaults(base), nil
}

// parseHeaders turns "Name: value" pairs into a map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseCookies turns "name=value" pairs into a map.
func parseCookies(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	cookies := make(map[string]string, len(raw))
	for _, c := range raw {
		name, value, ok := strings.Cut(c, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie %q: expected \"name=value\"", c)
		}
		cookies[name] = strings.TrimSpace(value)
	}
	return cookies, nil
}
