package extract

import (
	"errors"
	"fmt"
	"math"

	"cloud.google.com/go/civil"
	"github.com/spf13/cast"
)

var (
	errNotString  = errors.New("not a string")
	errNotNumber  = errors.New("not a number")
	errNotInteger = errors.New("not an integer")
	errNotObject  = errors.New("not an object")
	errNotList    = errors.New("not a list")
)

// reader reads typed leaves from raw nodes. A missing leaf reads as nil; a
// leaf of the wrong shape also reads as nil and is recorded as an issue.
type reader struct {
	section string
	issues  []FieldIssue
}

func (r *reader) fail(path string, err error) {
	r.issues = append(r.issues, FieldIssue{Section: r.section, Path: path, Err: err})
}

func (r *reader) str(n Node, path string) *string {
	v, ok := n.Lookup(path)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		r.fail(path, fmt.Errorf("%w: %T", errNotString, v))
		return nil
	}
	return &s
}

func (r *reader) int(n Node, path string) *int64 {
	v, ok := n.Lookup(path)
	if !ok {
		return nil
	}
	i, err := toInt64(v)
	if err != nil {
		r.fail(path, err)
		return nil
	}
	return &i
}

func (r *reader) float(n Node, path string) *float64 {
	v, ok := n.Lookup(path)
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		r.fail(path, err)
		return nil
	}
	return &f
}

// date parses a strict YYYY-MM-DD value. Anything else is an issue and reads as nil.
func (r *reader) date(n Node, path string) *civil.Date {
	s := r.str(n, path)
	if s == nil {
		return nil
	}
	d, err := civil.ParseDate(*s)
	if err != nil {
		r.fail(path, fmt.Errorf("invalid date %q: %w", *s, err))
		return nil
	}
	return &d
}

func (r *reader) object(n Node, path string) (Node, bool) {
	v, ok := n.Lookup(path)
	if !ok {
		return nil, false
	}
	obj, ok := asObject(v)
	if !ok {
		r.fail(path, fmt.Errorf("%w: %T", errNotObject, v))
		return nil, false
	}
	return Node(obj), true
}

// values returns the raw items of a list. A missing list is empty.
func (r *reader) values(n Node, path string) ([]any, error) {
	v, ok := n.Lookup(path)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", path, errNotList, v)
	}
	return items, nil
}

// rootList returns the object items of a section's list. A list of the wrong
// shape fails the section; non-object items are skipped and recorded.
func (r *reader) rootList(n Node, path string) ([]Node, error) {
	items, err := r.values(n, path)
	if err != nil {
		return nil, err
	}
	return r.objects(path, items), nil
}

// strs reads a list of strings nested inside a sub-record. Items that are not
// strings are skipped and recorded.
func (r *reader) strs(n Node, path string) []string {
	items, err := r.values(n, path)
	if err != nil {
		r.fail(path, err)
		return nil
	}
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			r.fail(fmt.Sprintf("%s[%d]", path, i), fmt.Errorf("%w: %T", errNotString, item))
			continue
		}
		out = append(out, s)
	}
	return out
}

// list is rootList for lists nested inside a sub-record, where a wrong shape
// only costs that one field.
func (r *reader) list(n Node, path string) []Node {
	items, err := r.values(n, path)
	if err != nil {
		r.fail(path, err)
		return nil
	}
	return r.objects(path, items)
}

func (r *reader) objects(path string, items []any) []Node {
	out := make([]Node, 0, len(items))
	for i, item := range items {
		obj, ok := asObject(item)
		if !ok {
			r.fail(fmt.Sprintf("%s[%d]", path, i), fmt.Errorf("%w: %T", errNotObject, item))
			continue
		}
		out = append(out, Node(obj))
	}
	return out
}

func toFloat64(v any) (float64, error) {
	if _, ok := v.(bool); ok {
		return 0, fmt.Errorf("%w: bool", errNotNumber)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errNotNumber, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", errNotNumber, f)
	}
	return f, nil
}

func toInt64(v any) (int64, error) {
	f, err := toFloat64(v)
	if err != nil {
		return 0, err
	}
	// float64(MaxInt64) rounds up to 2^63, which is already out of range.
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v", errNotInteger, f)
	}
	return int64(f), nil
}
