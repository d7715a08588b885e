package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Fields maps dotted field paths ("votes.12", "audienceTracking.totalJoins")
// to new values or to one of the transform sentinels below.
type Fields map[string]any

type increment struct{ by float64 }

type arrayUnion struct{ values []any }

type arrayRemove struct{ values []any }

type deleteField struct{}

// Increment adds n to a numeric field, treating a missing field as zero.
func Increment(n int) any { return increment{by: float64(n)} }

// ArrayUnion appends each value not already present in the array field.
func ArrayUnion(values ...any) any { return arrayUnion{values: values} }

func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

func DeleteField() any { return deleteField{} }

// Encode turns any JSON-serializable value into the generic document form.
func Encode(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document must encode to a JSON object: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

// Apply mutates doc in place with every field in fields.
func Apply(doc map[string]any, fields Fields) error {
	for path, value := range fields {
		if path == "" || path == RevisionField {
			return fmt.Errorf("field %q cannot be written", path)
		}
		parts := strings.Split(path, ".")
		parent := doc
		for _, p := range parts[:len(parts)-1] {
			next, ok := parent[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				parent[p] = next
			}
			parent = next
		}
		leaf := parts[len(parts)-1]
		if err := applyLeaf(parent, leaf, value); err != nil {
			return fmt.Errorf("field %q: %w", path, err)
		}
	}
	return nil
}

func applyLeaf(parent map[string]any, key string, value any) error {
	switch op := value.(type) {
	case increment:
		current := 0.0
		if existing, ok := parent[key]; ok && existing != nil {
			n, ok := existing.(float64)
			if !ok {
				return fmt.Errorf("cannot increment non-numeric value %v", existing)
			}
			current = n
		}
		parent[key] = current + op.by
	case arrayUnion:
		arr, err := existingArray(parent[key])
		if err != nil {
			return err
		}
		for _, v := range op.values {
			nv, err := normalize(v)
			if err != nil {
				return err
			}
			if !containsValue(arr, nv) {
				arr = append(arr, nv)
			}
		}
		parent[key] = arr
	case arrayRemove:
		arr, err := existingArray(parent[key])
		if err != nil {
			return err
		}
		kept := arr[:0]
		for _, existing := range arr {
			drop := false
			for _, v := range op.values {
				nv, err := normalize(v)
				if err != nil {
					return err
				}
				if reflect.DeepEqual(existing, nv) {
					drop = true
					break
				}
			}
			if !drop {
				kept = append(kept, existing)
			}
		}
		parent[key] = kept
	case deleteField:
		delete(parent, key)
	default:
		nv, err := normalize(value)
		if err != nil {
			return err
		}
		parent[key] = nv
	}
	return nil
}

func existingArray(v any) ([]any, error) {
	switch a := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return a, nil
	default:
		return nil, fmt.Errorf("value %v is not an array", v)
	}
}

func containsValue(arr []any, v any) bool {
	for _, existing := range arr {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

// Revision reads the revision counter of a generic document.
func Revision(doc map[string]any) int64 {
	if n, ok := doc[RevisionField].(float64); ok {
		return int64(n)
	}
	return 0
}

// Stamp sets the document's revision and returns its snapshot.
func Stamp(id string, doc map[string]any, rev int64) (Snapshot, error) {
	doc[RevisionField] = float64(rev)
	data, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, Revision: rev, Data: data}, nil
}

// Decode parses a stored document back into generic form.
func Decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// lookup walks a dotted path through a generic document.
func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
