package spider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/simplejsonspider/internal/config"
	"github.com/jonathan/simplejsonspider/internal/detect"
	"github.com/jonathan/simplejsonspider/internal/fetch"
	"github.com/jonathan/simplejsonspider/internal/observability"
	"github.com/jonathan/simplejsonspider/internal/output"
	"github.com/jonathan/simplejsonspider/internal/schemas"
)

const todoBody = `{"userId": 1, "id": 1, "title": "delectus aut autem", "completed": false}`

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newSpider(t *testing.T, cfg config.Config, opts ...Option) *Spider {
	t.Helper()
	s, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_SavesJSONWithTemplateName(t *testing.T) {
	server := serve(t, todoBody)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL + "/todos/1",
		FilenameTemplate: "{id}_{title}",
		StorageDir:       dir,
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1_delectus aut autem.json", res.Name)
	assert.Equal(t, filepath.Join(dir, "1_delectus aut autem.json"), res.Path)
	assert.Equal(t, detect.JSON, res.Type)

	content := readFile(t, res.Path)
	assert.Contains(t, content, `"id": 1`)
	assert.Contains(t, content, "\n  \"title\"")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "delectus aut autem", decoded["title"])
}

func TestNew_CreatesStorageDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	newSpider(t, config.Config{
		APIURL:           "http://example.com",
		FilenameTemplate: "x",
		StorageDir:       dir,
	})

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.Config{FilenameTemplate: "x", StorageDir: t.TempDir()})
	require.Error(t, err)

	var cfgErr *config.ValidationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRun_CustomExtension(t *testing.T) {
	server := serve(t, `{"name": "test_file", "data": "some data"}`)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{name}",
		StorageDir:       dir,
		FileExtension:    "custom",
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test_file.custom", res.Name)
	assert.Equal(t, detect.Text, res.Type)
	assert.Equal(t, `{"name": "test_file", "data": "some data"}`, readFile(t, res.Path))
}

func TestRun_KnownExtensionSelectsType(t *testing.T) {
	server := serve(t, `{"name":"n"}`)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{name}",
		StorageDir:       dir,
		FileExtension:    ".json",
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "n.json", res.Name)
	assert.Equal(t, detect.JSON, res.Type)
	assert.Equal(t, "{\n  \"name\": \"n\"\n}", readFile(t, res.Path))
}

func TestRun_AutoDetect(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType detect.Type
		wantFile string
	}{
		{
			name:     "json",
			body:     `{"a": 1}`,
			wantType: detect.JSON,
			wantFile: "payload.json",
		},
		{
			name:     "yaml",
			body:     "key: value\nlist:\n  - a\n  - b\n",
			wantType: detect.YAML,
			wantFile: "payload.yaml",
		},
		{
			name:     "vtt",
			body:     "WEBVTT\n\n00:00:01.000 --> 00:00:04.000\nHello\n",
			wantType: detect.VTT,
			wantFile: "payload.vtt",
		},
		{
			name:     "xml",
			body:     "<root><item>1</item></root>",
			wantType: detect.XML,
			wantFile: "payload.xml",
		},
		{
			name:     "csv",
			body:     "a,b,c\n1,2,3\n4,5,6",
			wantType: detect.CSV,
			wantFile: "payload.csv",
		},
		{
			name:     "text",
			body:     "just some words",
			wantType: detect.Text,
			wantFile: "payload.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.body)
			s := newSpider(t, config.Config{
				APIURL:           server.URL,
				FilenameTemplate: "payload",
				StorageDir:       t.TempDir(),
			})

			res, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, res.Type)
			assert.Equal(t, tt.wantFile, res.Name)
			assert.FileExists(t, res.Path)
		})
	}
}

func TestRun_AutoDetectDisabled(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType detect.Type
	}{
		{name: "json still recognized", body: `[1, 2]`, wantType: detect.JSON},
		{name: "yaml saved as text", body: "key: value\n", wantType: detect.Text},
		{name: "vtt saved as text", body: "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHi", wantType: detect.Text},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.body)
			s := newSpider(t, config.Config{
				APIURL:           server.URL,
				FilenameTemplate: "payload",
				StorageDir:       t.TempDir(),
				AutoDetectType:   config.Bool(false),
			})

			_, got, err := s.FetchContent(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got)
		})
	}
}

func TestRun_PrettifyDisabled(t *testing.T) {
	server := serve(t, todoBody)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       dir,
		PrettifyContent:  config.Bool(false),
	})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, todoBody, readFile(t, res.Path))
}

func TestRun_SendsHeadersAndCookies(t *testing.T) {
	var gotUA, gotReferer, gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		_, _ = w.Write([]byte(`{"id": 7}`))
	}))
	defer server.Close()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       t.TempDir(),
		Headers:          map[string]string{"User-Agent": "spider-test/1.0"},
		Cookies:          map[string]string{"session": "abc123"},
	})
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "spider-test/1.0", gotUA)
	assert.Empty(t, gotReferer)
	assert.Equal(t, "abc123", gotCookie)
}

func TestRun_DefaultHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "empty",
		StorageDir:       t.TempDir(),
	})
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fetch.DefaultUserAgent, gotUA)
	assert.Equal(t, fetch.DefaultReferer, gotReferer)
}

func TestRun_MissingKeyWritesNothing(t *testing.T) {
	server := serve(t, `{"id": 1}`)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{nonexistent}",
		StorageDir:       dir,
	})
	res, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)

	var missing *output.MissingTemplateKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nonexistent", missing.Key)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_TemplateFallbackUsesDefaultName(t *testing.T) {
	server := serve(t, "plain text body")
	dir := t.TempDir()

	var logs bytes.Buffer
	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{}",
		StorageDir:       dir,
	}, WithLogger(observability.NewLogger(&logs, false)))
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "downloaded_file.txt", res.Name)
	assert.NotNil(t, res.TemplateErr)
	assert.Equal(t, "plain text body", readFile(t, res.Path))
	assert.Contains(t, logs.String(), "using default name")
	assert.Contains(t, logs.String(), "file saved")
}

func TestRun_HTTPErrorWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "x",
		StorageDir:       dir,
	})
	_, err := s.Run(context.Background())
	require.Error(t, err)

	var fetchErr *fetch.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingWriter struct{}

func (failingWriter) WriteText(ctx context.Context, path, content string) error {
	return errors.New("disk full")
}

func TestRun_WriteErrorPropagates(t *testing.T) {
	server := serve(t, `{"id": 1}`)

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       t.TempDir(),
	}, WithWriter(failingWriter{}))
	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

type recordingWriter struct {
	paths    []string
	contents []string
}

func (w *recordingWriter) WriteText(ctx context.Context, path, content string) error {
	w.paths = append(w.paths, path)
	w.contents = append(w.contents, content)
	return nil
}

func TestRun_RepeatedRunsOverwriteSameName(t *testing.T) {
	server := serve(t, `{"id": 3}`)
	rec := &recordingWriter{}

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       "out",
	}, WithWriter(rec))
	for i := 0; i < 2; i++ {
		_, err := s.Run(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, rec.paths, 2)
	assert.Equal(t, rec.paths[0], rec.paths[1])
	assert.Equal(t, filepath.Join("out", "3.json"), rec.paths[0])
}

func TestFetchJSON(t *testing.T) {
	server := serve(t, todoBody)

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       t.TempDir(),
	})
	v, err := s.FetchJSON(context.Background())
	require.NoError(t, err)

	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), obj["id"])
	assert.Equal(t, "delectus aut autem", obj["title"])
}

func TestFetchJSON_RejectsOtherTypes(t *testing.T) {
	server := serve(t, "key: value\n")

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "x",
		StorageDir:       t.TempDir(),
	})
	_, err := s.FetchJSON(context.Background())
	require.Error(t, err)

	var notJSON *NotJSONError
	require.ErrorAs(t, err, &notJSON)
	assert.Equal(t, detect.YAML, notJSON.Detected)
	assert.Contains(t, err.Error(), "expected JSON content but got yaml")
}

func TestFetchJSON_ForcedJSONExtensionWithInvalidBody(t *testing.T) {
	server := serve(t, "not json")

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "x",
		StorageDir:       t.TempDir(),
		FileExtension:    "json",
	})
	_, err := s.FetchJSON(context.Background())
	require.Error(t, err)

	var notJSON *NotJSONError
	require.ErrorAs(t, err, &notJSON)
	assert.NotNil(t, notJSON.Cause)
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	s := newSpider(t, config.Config{
		APIURL:           "http://example.com",
		FilenameTemplate: "{id}_{title}",
		StorageDir:       dir,
	})

	res, err := s.SaveJSON(context.Background(), map[string]any{
		"id":    json.Number("2"),
		"title": "café <b>",
	})
	require.NoError(t, err)

	assert.Equal(t, "2_café <b>.json", res.Name)
	assert.Equal(t, "{\n  \"id\": 2,\n  \"title\": \"café <b>\"\n}", readFile(t, res.Path))
}

func TestFetchThenSaveJSON(t *testing.T) {
	server := serve(t, todoBody)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}_{title}",
		StorageDir:       dir,
	})
	v, err := s.FetchJSON(context.Background())
	require.NoError(t, err)
	res, err := s.SaveJSON(context.Background(), v)
	require.NoError(t, err)

	assert.Equal(t, "1_delectus aut autem.json", res.Name)
	assert.Contains(t, readFile(t, res.Path), `"completed": false`)
}

func TestSaveContent_DirectCall(t *testing.T) {
	dir := t.TempDir()
	s := newSpider(t, config.Config{
		APIURL:           "http://example.com",
		FilenameTemplate: "subs",
		StorageDir:       dir,
	})

	body := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHi"
	res, err := s.SaveContent(context.Background(), body, detect.VTT)
	require.NoError(t, err)

	assert.Equal(t, "subs.vtt", res.Name)
	assert.Equal(t, body, readFile(t, res.Path))
}

func TestURL(t *testing.T) {
	s := newSpider(t, config.Config{
		APIURL:           "http://example.com/a",
		FilenameTemplate: "x",
		StorageDir:       t.TempDir(),
	})
	assert.Equal(t, "http://example.com/a", s.URL())
}

const todoSchema = `{
  "type": "object",
  "required": ["id", "title"],
  "properties": {
    "id": {"type": "integer"},
    "title": {"type": "string"}
  }
}`

func TestRun_SchemaAcceptsMatchingJSON(t *testing.T) {
	server := serve(t, todoBody)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       dir,
	}, WithSchema(todoSchema))
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
}

func TestRun_SchemaRejectionWritesNothing(t *testing.T) {
	server := serve(t, `{"id": "one"}`)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       dir,
	}, WithSchema(todoSchema))
	_, err := s.Run(context.Background())
	require.Error(t, err)

	var valErr *schemas.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.NotEmpty(t, valErr.Errors)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_SchemaSkippedForNonJSON(t *testing.T) {
	server := serve(t, "key: value\n")
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "payload",
		StorageDir:       dir,
	}, WithSchema(todoSchema))
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, detect.YAML, res.Type)
	assert.FileExists(t, res.Path)
}

func TestNew_SchemaPathFromConfig(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "todo.schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(todoSchema), 0644))
	server := serve(t, `{"id": 1}`)
	dir := t.TempDir()

	s := newSpider(t, config.Config{
		APIURL:           server.URL,
		FilenameTemplate: "{id}",
		StorageDir:       dir,
		SchemaPath:       schemaPath,
	})
	_, err := s.Run(context.Background())
	require.Error(t, err)

	var valErr *schemas.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestNew_MissingSchemaFile(t *testing.T) {
	_, err := New(context.Background(), config.Config{
		APIURL:           "http://example.com",
		FilenameTemplate: "x",
		StorageDir:       t.TempDir(),
		SchemaPath:       filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)

	var loadErr *schemas.SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}
