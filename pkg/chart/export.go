package chart

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var pageTemplate = template.Must(template.New("figure").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js"></script>
</head>
<body>
<div id="figure"></div>
<script>
const figure = {{ .Figure }};
Plotly.newPlot("figure", figure.data, figure.layout, {responsive: true});
</script>
</body>
</html>
`))

// HTML renders a standalone page that draws the figure with plotly.js.
func (f *Figure) HTML() ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title  string
		Figure *Figure
	}{Title: f.Title(), Figure: f})
	if err != nil {
		return nil, errors.Wrap(err, "render figure page")
	}
	return buf.Bytes(), nil
}

// WriteFiles stores the figure as name.json and name.html below dir and
// returns both paths.
func (f *Figure) WriteFiles(dir, name string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", errors.Wrapf(err, "create chart dir %s", dir)
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "encode figure")
	}
	jsonPath := filepath.Join(dir, name+".json")
	if err := os.WriteFile(jsonPath, b, 0o644); err != nil {
		return "", "", errors.Wrapf(err, "write %s", jsonPath)
	}

	page, err := f.HTML()
	if err != nil {
		return "", "", err
	}
	htmlPath := filepath.Join(dir, name+".html")
	if err := os.WriteFile(htmlPath, page, 0o644); err != nil {
		return "", "", errors.Wrapf(err, "write %s", htmlPath)
	}
	return jsonPath, htmlPath, nil
}
