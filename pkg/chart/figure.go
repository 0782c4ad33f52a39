// Package chart defines the chart handle produced by generated plotting code.
// Figures use the plotly figure layout ({data, layout}) so they can be exported
// and rendered in a browser, and are simple enough to draw in a terminal.
package chart

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

const DefaultHeight = 400

var traceTypes = map[string]bool{
	"bar":     true,
	"line":    true,
	"scatter": true,
	"pie":     true,
}

// Text is a plotly title. It decodes both "title" and {"text": "title"}.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var o struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &o); err != nil {
		return errors.Wrap(err, "title must be a string or {text}")
	}
	*t = Text(o.Text)
	return nil
}

type Trace struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Mode   string `json:"mode,omitempty"`
	X      []any  `json:"x,omitempty"`
	Y      []any  `json:"y,omitempty"`
	Labels []any  `json:"labels,omitempty"`
	Values []any  `json:"values,omitempty"`

	Extra map[string]any `json:"-"`
}

type Axis struct {
	Title Text `json:"title,omitempty"`

	Extra map[string]any `json:"-"`
}

type Layout struct {
	Title  Text  `json:"title,omitempty"`
	Height int   `json:"height,omitempty"`
	XAxis  *Axis `json:"xaxis,omitempty"`
	YAxis  *Axis `json:"yaxis,omitempty"`

	Extra map[string]any `json:"-"`
}

// Figure is the chart handle.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// FromValue converts a decoded value (for instance the export of a JS object)
// into a Figure and validates it.
func FromValue(v any) (*Figure, error) {
	if v == nil {
		return nil, errors.New("figure is null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "figure is not serializable")
	}
	return Parse(b)
}

func Parse(b []byte) (*Figure, error) {
	f := &Figure{}
	if err := json.Unmarshal(b, f); err != nil {
		return nil, errors.Wrap(err, "decode figure")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Figure) Validate() error {
	if len(f.Data) == 0 {
		return errors.New("figure has no traces")
	}
	for i, t := range f.Data {
		if !traceTypes[t.Type] {
			return errors.Errorf("trace %d: unsupported type %q", i, t.Type)
		}
		if t.Type == "pie" {
			if len(t.Values) == 0 || len(t.Labels) != len(t.Values) {
				return errors.Errorf("trace %d: pie needs labels and values of equal length", i)
			}
			continue
		}
		if len(t.Y) == 0 {
			return errors.Errorf("trace %d: no y values", i)
		}
		if len(t.X) > 0 && len(t.X) != len(t.Y) {
			return errors.Errorf("trace %d: x has %d values, y has %d", i, len(t.X), len(t.Y))
		}
	}
	return nil
}

// WithHeight returns a copy of f with the layout height set.
func (f *Figure) WithHeight(h int) *Figure {
	c := *f
	c.Data = append([]Trace(nil), f.Data...)
	c.Layout.Height = h
	return &c
}

func (f *Figure) Title() string {
	return string(f.Layout.Title)
}

// Point is a labelled value of the first trace, used for terminal rendering.
type Point struct {
	Label string
	Value float64
}

// Points flattens the first trace into labelled values. Non-numeric values
// are skipped.
func (f *Figure) Points() []Point {
	if len(f.Data) == 0 {
		return nil
	}
	t := f.Data[0]
	labels, values := t.X, t.Y
	if t.Type == "pie" {
		labels, values = t.Labels, t.Values
	}

	var ret []Point
	for i, v := range values {
		n, ok := toFloat(v)
		if !ok {
			continue
		}
		label := strconv.Itoa(i + 1)
		if i < len(labels) {
			label = fmt.Sprint(labels[i])
		}
		ret = append(ret, Point{Label: label, Value: n})
	}
	return ret
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
