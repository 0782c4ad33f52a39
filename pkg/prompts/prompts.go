// Package prompts holds the prompt catalog. Prompts are text/template
// templates (with sprig functions) stored in YAML; an embedded catalog is used
// unless a file overrides it.
package prompts

import (
	"bytes"
	_ "embed"
	"os"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalogYAML []byte

// Template is a system/user pair plus an optional correction template used by
// the self-correcting retry loop.
type Template struct {
	System     string `yaml:"system"`
	User       string `yaml:"user"`
	Correction string `yaml:"correction,omitempty"`
}

type Catalog struct {
	SQL       Template `yaml:"sql"`
	Narrative Template `yaml:"narrative"`
	Chart     Template `yaml:"chart"`
}

func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(b []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "parse prompt catalog")
	}
	for name, t := range map[string]Template{"sql": c.SQL, "narrative": c.Narrative, "chart": c.Chart} {
		if t.System == "" || t.User == "" {
			return nil, errors.Errorf("prompt catalog: %s needs system and user templates", name)
		}
	}
	return c, nil
}

// Load reads a catalog from path, falling back to the embedded catalog for an
// empty path. Templates missing from the file keep their default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompt catalog %s", path)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "parse prompt catalog %s", path)
	}
	return c, nil
}

// Render executes the system and user templates against data.
func (t Template) Render(data any) (llm.Prompt, error) {
	system, err := render("system", t.System, data)
	if err != nil {
		return llm.Prompt{}, err
	}
	user, err := render("user", t.User, data)
	if err != nil {
		return llm.Prompt{}, err
	}
	return llm.Prompt{System: system, User: user}, nil
}

// RenderCorrection keeps the system prompt and replaces the user prompt with
// the correction template.
func (t Template) RenderCorrection(data any) (llm.Prompt, error) {
	if t.Correction == "" {
		return llm.Prompt{}, errors.New("template has no correction prompt")
	}
	system, err := render("system", t.System, data)
	if err != nil {
		return llm.Prompt{}, err
	}
	user, err := render("correction", t.Correction, data)
	if err != nil {
		return llm.Prompt{}, err
	}
	return llm.Prompt{System: system, User: user}, nil
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "parse %s template", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render %s template", name)
	}
	return buf.String(), nil
}
