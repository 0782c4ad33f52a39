package chart

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Plotly has far more attributes than the ones modelled here (marker,
// orientation, text, barmode, tickformat, ...). Whatever is not a struct field
// is kept in Extra and written back out unchanged.

var (
	traceKeys  = keys("type", "name", "mode", "x", "y", "labels", "values")
	layoutKeys = keys("title", "height", "xaxis", "yaxis")
	axisKeys   = keys("title")
)

type (
	traceFields  Trace
	layoutFields Layout
	axisFields   Axis
)

func (t *Trace) UnmarshalJSON(b []byte) error {
	var f traceFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	extra, err := unknownFields(b, traceKeys)
	if err != nil {
		return err
	}
	*t = Trace(f)
	t.Extra = extra
	return nil
}

func (t Trace) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(traceFields(t), t.Extra)
}

func (l *Layout) UnmarshalJSON(b []byte) error {
	var f layoutFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	extra, err := unknownFields(b, layoutKeys)
	if err != nil {
		return err
	}
	*l = Layout(f)
	l.Extra = extra
	return nil
}

func (l Layout) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(layoutFields(l), l.Extra)
}

func (a *Axis) UnmarshalJSON(b []byte) error {
	var f axisFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	extra, err := unknownFields(b, axisKeys)
	if err != nil {
		return err
	}
	*a = Axis(f)
	a.Extra = extra
	return nil
}

func (a Axis) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(axisFields(a), a.Extra)
}

func keys(names ...string) map[string]bool {
	ret := make(map[string]bool, len(names))
	for _, n := range names {
		ret[n] = true
	}
	return ret
}

func unknownFields(b []byte, known map[string]bool) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	var extra map[string]any
	for k, v := range raw {
		if known[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, errors.Wrapf(err, "decode %q", k)
		}
		if extra == nil {
			extra = map[string]any{}
		}
		extra[k] = val
	}
	return extra, nil
}

func marshalWithExtra(v any, extra map[string]any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := fields[k]; ok {
			continue
		}
		enc, err := json.Marshal(val)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %q", k)
		}
		fields[k] = enc
	}
	return json.Marshal(fields)
}
