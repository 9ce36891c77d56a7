package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// Docs serves the embedded OpenAPI document as YAML, as JSON, and as a
// plain HTML index of its paths.
type Docs struct {
	json  []byte
	index []byte
}

func NewDocs() (*Docs, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	index, err := renderIndex(doc)
	if err != nil {
		return nil, err
	}
	return &Docs{json: js, index: index}, nil
}

func (d *Docs) JSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(d.json)
}

func (d *Docs) YAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIYAML)
}

func (d *Docs) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(d.index)
}

type endpoint struct {
	Method  string
	Path    string
	Summary string
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}} {{.Version}}</h1>
<p><a href="/docs/openapi.json">openapi.json</a> | <a href="/docs/openapi.yaml">openapi.yaml</a></p>
<ul>
{{range .Endpoints}}<li><strong>{{.Method}} {{.Path}}</strong> {{.Summary}}</li>
{{end}}</ul>
</body></html>
`))

func renderIndex(doc map[string]any) ([]byte, error) {
	info, _ := doc["info"].(map[string]any)
	paths, _ := doc["paths"].(map[string]any)

	var eps []endpoint
	for p, ops := range paths {
		m, _ := ops.(map[string]any)
		for method, op := range m {
			summary := ""
			if o, ok := op.(map[string]any); ok {
				summary, _ = o["summary"].(string)
			}
			eps = append(eps, endpoint{Method: strings.ToUpper(method), Path: p, Summary: summary})
		}
	}
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].Path != eps[j].Path {
			return eps[i].Path < eps[j].Path
		}
		return eps[i].Method < eps[j].Method
	})

	var b strings.Builder
	err := indexTmpl.Execute(&b, map[string]any{
		"Title":     info["title"],
		"Version":   info["version"],
		"Endpoints": eps,
	})
	if err != nil {
		return nil, fmt.Errorf("render docs index: %w", err)
	}
	return []byte(b.String()), nil
}
