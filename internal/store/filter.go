package store

import (
	"fmt"
	"reflect"
)

type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
	OpGT    Op = ">"
	OpGTE   Op = ">="
	OpLT    Op = "<"
	OpLTE   Op = "<="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Matches reports whether doc satisfies every filter.
func Matches(doc map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matchOne(doc, f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOne(doc map[string]any, f Filter) (bool, error) {
	got, present := lookup(doc, f.Field)
	if !present {
		return false, nil
	}
	want, err := normalize(f.Value)
	if err != nil {
		return false, err
	}
	switch f.Op {
	case OpEqual:
		return reflect.DeepEqual(got, want), nil
	case OpIn:
		list, ok := want.([]any)
		if !ok {
			return false, fmt.Errorf("filter %s in: value must be a list", f.Field)
		}
		return containsValue(list, got), nil
	case OpGT, OpGTE, OpLT, OpLTE:
		c, ok := compare(got, want)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpGT:
			return c > 0, nil
		case OpGTE:
			return c >= 0, nil
		case OpLT:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	default:
		return false, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
