package badger

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/util"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// normalize converts bson and go values into the json value model (map[string]any, []any,
// float64, string, bool, nil) that stored documents decode into.
func normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case string, bool, float64:
		return v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return cast.ToFloat64(v)
	case bson.D:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.M:
		return normalize(map[string]any(v))
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = normalize(val)
		}
		return m
	case bson.A:
		return normalize([]any(v))
	case []any:
		return lo.Map(v, func(item any, _ int) any { return normalize(item) })
	case *model.Document:
		return v.Value()
	}
	var out any
	if err := json.Unmarshal([]byte(util.JSONString(v)), &out); err != nil {
		return nil
	}
	return out
}

// elements returns the key/value pairs of an operator document
func elements(v any) ([]bson.E, bool) {
	switch v := v.(type) {
	case bson.D:
		return v, true
	case bson.M:
		return elements(map[string]any(v))
	case map[string]any:
		keys := lo.Keys(v)
		sort.Strings(keys)
		return lo.Map(keys, func(k string, _ int) bson.E { return bson.E{Key: k, Value: v[k]} }), true
	}
	return nil, false
}

// operatorDoc returns the elements of v when v is a document whose keys are all operators
func operatorDoc(v any) ([]bson.E, bool) {
	elems, ok := elements(v)
	if !ok || len(elems) == 0 {
		return nil, false
	}
	for _, e := range elems {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return elems, true
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// lookup returns every value reachable at path. Arrays met along the way are traversed element
// by element unless the next path segment is a numeric index.
func lookup(v any, path []string) []any {
	if len(path) == 0 {
		return []any{v}
	}
	switch node := v.(type) {
	case map[string]any:
		child, ok := node[path[0]]
		if !ok {
			return nil
		}
		return lookup(child, path[1:])
	case []any:
		if idx, err := strconv.Atoi(path[0]); err == nil {
			if idx >= 0 && idx < len(node) {
				return lookup(node[idx], path[1:])
			}
			return nil
		}
		var out []any
		for _, el := range node {
			if _, ok := el.(map[string]any); ok {
				out = append(out, lookup(el, path)...)
			}
		}
		return out
	}
	return nil
}

// getPath returns the single value at a dotted path without traversing arrays element-wise
func getPath(doc map[string]any, path string) (any, bool) {
	var node any = doc
	for _, seg := range splitPath(path) {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[seg]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil, false
			}
			node = n[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

// setPath sets the value at a dotted path, creating intermediate documents
func setPath(doc map[string]any, path string, value any) error {
	segs := splitPath(path)
	var node any = doc
	for i, seg := range segs {
		last := i == len(segs)-1
		switch n := node.(type) {
		case map[string]any:
			if last {
				n[seg] = value
				return nil
			}
			child, ok := n[seg]
			if !ok || child == nil {
				child = map[string]any{}
				n[seg] = child
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return errPathf("cannot create field '%s' in array element of '%s'", seg, path)
			}
			if last {
				n[idx] = value
				return nil
			}
			node = n[idx]
		default:
			return errPathf("cannot create field '%s' in non-document value of '%s'", seg, path)
		}
	}
	return nil
}

// deletePath removes the value at a dotted path, reporting whether it existed
func deletePath(doc map[string]any, path string) bool {
	segs := splitPath(path)
	parent := doc
	if len(segs) > 1 {
		v, ok := getPath(doc, strings.Join(segs[:len(segs)-1], "."))
		if !ok {
			return false
		}
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		parent = m
	}
	key := segs[len(segs)-1]
	if _, ok := parent[key]; !ok {
		return false
	}
	delete(parent, key)
	return true
}

// typeRank orders values of different types the way the document store sorts them
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case map[string]any:
		return 4
	case []any:
		return 5
	case bool:
		return 8
	}
	return 10
}

// compareValues orders two normalized values. ok is false when their types differ.
func compareValues(a, b any) (order int, ok bool) {
	if typeRank(a) != typeRank(b) {
		return 0, false
	}
	switch a := a.(type) {
	case nil:
		return 0, true
	case float64:
		bf := b.(float64)
		switch {
		case a < bf:
			return -1, true
		case a > bf:
			return 1, true
		}
		return 0, true
	case string:
		return strings.Compare(a, b.(string)), true
	case bool:
		bb := b.(bool)
		switch {
		case a == bb:
			return 0, true
		case !a:
			return -1, true
		}
		return 1, true
	}
	return strings.Compare(util.JSONString(a), util.JSONString(b)), true
}

// sortCompare orders any two normalized values, falling back to type rank across types
func sortCompare(a, b any) int {
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	order, _ := compareValues(a, b)
	return order
}

// sortKey reduces an array to the element it sorts by: the smallest ascending, the largest
// descending. An empty array sorts as null.
func sortKey(v any, desc bool) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	if len(arr) == 0 {
		return nil
	}
	return lo.Reduce(arr[1:], func(best any, next any, _ int) any {
		order := sortCompare(next, best)
		if (desc && order > 0) || (!desc && order < 0) {
			return next
		}
		return best
	}, arr[0])
}

func equalValues(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func isNumeric(v any) bool {
	_, ok := v.(float64)
	return ok
}

// clone deep copies a normalized value
func clone(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = clone(val)
		}
		return m
	case []any:
		return lo.Map(v, func(item any, _ int) any { return clone(item) })
	}
	return v
}

func cloneDoc(doc map[string]any) map[string]any {
	return clone(doc).(map[string]any)
}
