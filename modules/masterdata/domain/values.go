package domain

import (
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// Filter selects rows whose column value is one of the listed values.
// A nil entry matches NULL; an empty list matches nothing.
type Filter map[string][]any

// Eq is a single-value filter.
func Eq(col string, v any) Filter { return Filter{col: {v}} }

// In builds a filter from typed ids.
func In[T any](col string, values []T) Filter {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return Filter{col: out}
}

// And merges filters; later entries win.
func (f Filter) And(other Filter) Filter {
	out := make(Filter, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Coerce converts v to the Go type stored for typ. Blank text in non-text
// columns becomes nil.
func Coerce(typ ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && typ != TypeText && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	switch typ {
	case TypeText:
		s, ok := table.AsString(v)
		if !ok {
			return nil, errors.Errorf("cannot store %T as text", v)
		}
		return s, nil
	case TypeInt:
		n, ok := table.AsInt64(v)
		if !ok {
			return nil, errors.Errorf("cannot store %v as integer", v)
		}
		return n, nil
	case TypeBool:
		b, ok := table.AsBool(v)
		if !ok {
			return nil, errors.Errorf("cannot store %v as boolean", v)
		}
		return b, nil
	case TypeFloat:
		f, ok := table.AsFloat64(v)
		if !ok {
			return nil, errors.Errorf("cannot store %v as float", v)
		}
		return f, nil
	case TypeTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x))
			if err != nil {
				return nil, errors.Wrap(err, "parse timestamp")
			}
			return ts, nil
		}
		return nil, errors.Errorf("cannot store %T as timestamp", v)
	}
	return v, nil
}

// CoerceRow converts every known column of values in place.
func CoerceRow(m Model, values map[string]any) error {
	for k, v := range values {
		c, ok := m.Column(k)
		if !ok {
			continue
		}
		cv, err := Coerce(c.Type, v)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", m.Table(), k)
		}
		values[k] = cv
	}
	return nil
}
