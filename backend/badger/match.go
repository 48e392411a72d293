package badger

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// matches reports whether the document satisfies every element of the filter
func matches(doc map[string]any, filter bson.D) (bool, error) {
	for _, e := range filter {
		var (
			ok  bool
			err error
		)
		switch e.Key {
		case "$and":
			ok, err = matchLogical(doc, e.Value, true)
		case "$or":
			ok, err = matchLogical(doc, e.Value, false)
		default:
			if strings.HasPrefix(e.Key, "$") {
				return false, errPathf("unsupported top level operator '%s'", e.Key)
			}
			ok, err = matchField(doc, e.Key, e.Value)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc map[string]any, clauses any, all bool) (bool, error) {
	list, ok := normalizeClauses(clauses)
	if !ok {
		return false, errPathf("logical operators require an array of documents")
	}
	for _, clause := range list {
		pass, err := matches(doc, clause)
		if err != nil {
			return false, err
		}
		if all && !pass {
			return false, nil
		}
		if !all && pass {
			return true, nil
		}
	}
	return all, nil
}

func normalizeClauses(v any) ([]bson.D, bool) {
	switch v := v.(type) {
	case []bson.D:
		return v, true
	case bson.A:
		return normalizeClauses([]any(v))
	case []any:
		out := make([]bson.D, 0, len(v))
		for _, item := range v {
			elems, ok := elements(item)
			if !ok {
				return nil, false
			}
			out = append(out, bson.D(elems))
		}
		return out, true
	}
	return nil, false
}

// matchField evaluates a single field condition: either an operator document or a literal
// equality
func matchField(doc map[string]any, field string, cond any) (bool, error) {
	values := lookup(doc, splitPath(field))
	if ops, ok := operatorDoc(cond); ok {
		for _, op := range ops {
			pass, err := matchOperator(values, op.Key, op.Value)
			if err != nil || !pass {
				return false, err
			}
		}
		return true, nil
	}
	return matchEq(values, normalize(cond)), nil
}

// candidates expands array values into their elements while keeping the arrays themselves, so
// that conditions match either the whole array or any element
func candidates(values []any) []any {
	var out []any
	for _, v := range values {
		out = append(out, v)
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
		}
	}
	return out
}

func matchEq(values []any, want any) bool {
	if len(values) == 0 {
		return want == nil
	}
	return lo.ContainsBy(candidates(values), func(v any) bool {
		return equalValues(v, want)
	})
}

func matchIn(values []any, operand any) (bool, error) {
	list, ok := normalize(operand).([]any)
	if !ok {
		return false, errPathf("$in/$nin require an array")
	}
	for _, want := range list {
		if matchEq(values, want) {
			return true, nil
		}
	}
	return false, nil
}

func matchOperator(values []any, op string, operand any) (bool, error) {
	switch op {
	case "$eq":
		return matchEq(values, normalize(operand)), nil
	case "$ne":
		return !matchEq(values, normalize(operand)), nil
	case "$in":
		return matchIn(values, operand)
	case "$nin":
		pass, err := matchIn(values, operand)
		return !pass, err
	case "$all":
		list, ok := normalize(operand).([]any)
		if !ok {
			return false, errPathf("$all requires an array")
		}
		if len(list) == 0 {
			return false, nil
		}
		for _, want := range list {
			if !matchEq(values, want) {
				return false, nil
			}
		}
		return true, nil
	case "$exists":
		return (len(values) > 0) == cast.ToBool(normalize(operand)), nil
	case "$gt", "$gte", "$lt", "$lte":
		want := normalize(operand)
		return lo.ContainsBy(candidates(values), func(v any) bool {
			order, ok := compareValues(v, want)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return order > 0
			case "$gte":
				return order >= 0
			case "$lt":
				return order < 0
			}
			return order <= 0
		}), nil
	}
	return false, errPathf("unsupported operator '%s'", op)
}

// matchElement evaluates a $pull condition against a single array element
func matchElement(element any, cond any) (bool, error) {
	if ops, ok := operatorDoc(cond); ok {
		for _, op := range ops {
			pass, err := matchOperator([]any{element}, op.Key, op.Value)
			if err != nil || !pass {
				return false, err
			}
		}
		return true, nil
	}
	if sub, ok := elements(cond); ok {
		doc, isDoc := element.(map[string]any)
		if !isDoc {
			return false, nil
		}
		return matches(doc, bson.D(sub))
	}
	return equalValues(element, normalize(cond)), nil
}
