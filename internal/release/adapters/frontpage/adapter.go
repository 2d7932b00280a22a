// Package frontpage renders the GitHub Pages frontpage from the
// repository index.
package frontpage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

// defaultTemplate lists every chart with its newest version first.
// Entries are already sorted descending by the merger, so .Versions
// leads with the latest release.
const defaultTemplate = `# {{ .Title }}

{{ .Description }}

| Chart | Latest | Type | Description |
|-------|--------|------|-------------|
{{- range .Charts }}
| [{{ .Name }}]({{ rawContentURL .Latest.URL }}) | {{ .Latest.Version }} | {{ default "application" .Latest.Type }} | {{ .Latest.Description }} |
{{- end }}

_Generated {{ .Generated }}_
`

// chartRow is one chart's rendering context.
type chartRow struct {
	Name     string
	Latest   entryContext
	Versions []entryContext
}

type entryContext struct {
	Version     string
	Type        string
	Description string
	URL         string
}

// Adapter implements ports.FrontpagePort with text/template plus the
// sprig function map and a raw-content URL helper.
type Adapter struct {
	tmpl        *template.Template
	title       string
	description string
}

// New creates a frontpage renderer. templateText overrides the built-in
// template when non-empty.
func New(templateText, title, description string) (*Adapter, error) {
	if templateText == "" {
		templateText = defaultTemplate
	}

	tmpl, err := template.New("frontpage").
		Funcs(sprig.FuncMap()).
		Funcs(template.FuncMap{"rawContentURL": rawContentURL}).
		Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("parsing frontpage template: %w", err)
	}

	return &Adapter{tmpl: tmpl, title: title, description: description}, nil
}

// Render produces the frontpage markdown for the given index. Charts
// are listed alphabetically.
func (a *Adapter) Render(_ context.Context, idx *domain.Index) ([]byte, error) {
	if idx == nil {
		idx = domain.NewIndex()
	}
	names := make([]string, 0, len(idx.Entries))
	for name := range idx.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	charts := make([]chartRow, 0, len(names))
	for _, name := range names {
		entries := idx.Entries[name]
		if len(entries) == 0 {
			continue
		}
		row := chartRow{Name: name}
		for _, e := range entries {
			row.Versions = append(row.Versions, toEntryContext(e))
		}
		row.Latest = row.Versions[0]
		charts = append(charts, row)
	}

	var buf bytes.Buffer
	err := a.tmpl.Execute(&buf, map[string]any{
		"Title":       a.title,
		"Description": a.description,
		"Charts":      charts,
		"Generated":   idx.Generated.Format("2006-01-02 15:04:05 UTC"),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering frontpage: %w", err)
	}
	return buf.Bytes(), nil
}

func toEntryContext(e domain.IndexEntry) entryContext {
	ctx := entryContext{
		Version:     e.Version,
		Type:        e.Type,
		Description: e.Description,
	}
	if len(e.URLs) > 0 {
		ctx.URL = e.URLs[0]
	}
	return ctx
}

// rawContentURL rewrites a github.com repository URL to its
// raw.githubusercontent.com equivalent so pages can link file contents
// directly. Non-GitHub URLs pass through unchanged.
func rawContentURL(u string) string {
	const host = "https://github.com/"
	if !strings.HasPrefix(u, host) {
		return u
	}
	rest := strings.TrimPrefix(u, host)
	return "https://raw.githubusercontent.com/" + strings.Replace(rest, "/blob/", "/", 1)
}
