package badger

import (
	"sort"
	"strings"

	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/util"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

type stageFunc func(docs []map[string]any, spec any) ([]map[string]any, error)

var stages = map[string]stageFunc{
	"$match":     matchStage,
	"$unwind":    unwindStage,
	"$sort":      sortStage,
	"$group":     groupStage,
	"$addFields": addFieldsStage,
	"$set":       addFieldsStage,
	"$project":   projectStage,
	"$limit":     limitStage,
	"$skip":      skipStage,
	"$count":     countStage,
}

// runPipeline applies each stage to the output of the previous one, in order
func runPipeline(docs []map[string]any, pipeline []bson.D) ([]map[string]any, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, errPathf("pipeline stage %d must have exactly one operator", i)
		}
		fn, ok := stages[stage[0].Key]
		if !ok {
			return nil, errPathf("unsupported pipeline stage '%s'", stage[0].Key)
		}
		var err error
		docs, err = fn(docs, stage[0].Value)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func matchStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	filter, ok := elements(spec)
	if !ok {
		return nil, errPathf("$match requires a document")
	}
	var out []map[string]any
	for _, doc := range docs {
		pass, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if pass {
			out = append(out, doc)
		}
	}
	return out, nil
}

// fieldPath strips the '$' prefix from a field path expression
func fieldPath(expr any) (string, bool) {
	s, ok := expr.(string)
	if !ok || !strings.HasPrefix(s, "$") || len(s) < 2 {
		return "", false
	}
	return s[1:], true
}

func unwindStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	var (
		path     string
		ok       bool
		preserve bool
	)
	if opts, isDoc := elements(spec); isDoc {
		for _, e := range opts {
			switch e.Key {
			case "path":
				path, ok = fieldPath(e.Value)
			case "preserveNullAndEmptyArrays":
				preserve = cast.ToBool(e.Value)
			}
		}
	} else {
		path, ok = fieldPath(spec)
	}
	if !ok {
		return nil, errPathf("$unwind requires a '$' prefixed field path")
	}
	var out []map[string]any
	for _, doc := range docs {
		value, exists := getPath(doc, path)
		arr, isArr := value.([]any)
		switch {
		case !exists || value == nil || (isArr && len(arr) == 0):
			if preserve {
				out = append(out, doc)
			}
		case !isArr:
			out = append(out, doc)
		default:
			for _, el := range arr {
				next := cloneDoc(doc)
				if err := setPath(next, path, clone(el)); err != nil {
					return nil, err
				}
				out = append(out, next)
			}
		}
	}
	return out, nil
}

func sortStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	keys, ok := elements(spec)
	if !ok || len(keys) == 0 {
		return nil, errPathf("$sort requires a document of sort keys")
	}
	out := append([]map[string]any{}, docs...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			desc := cast.ToInt(normalize(k.Value)) < 0
			a, _ := getPath(out[i], k.Key)
			b, _ := getPath(out[j], k.Key)
			order := sortCompare(sortKey(a, desc), sortKey(b, desc))
			if desc {
				order = -order
			}
			if order != 0 {
				return order < 0
			}
		}
		return false
	})
	return out, nil
}

// evalExpr evaluates an expression against a document: '$' prefixed strings reference fields,
// {$literal: v} is v unevaluated, documents are evaluated field by field and anything else is a
// literal
func evalExpr(doc map[string]any, expr any) any {
	if path, ok := fieldPath(expr); ok {
		v, _ := getPath(doc, path)
		return clone(v)
	}
	if ops, ok := operatorDoc(expr); ok && len(ops) == 1 && ops[0].Key == "$literal" {
		return normalize(ops[0].Value)
	}
	if elems, ok := elements(expr); ok && len(elems) > 0 && !strings.HasPrefix(elems[0].Key, "$") {
		out := map[string]any{}
		for _, e := range elems {
			out[e.Key] = evalExpr(doc, e.Value)
		}
		return out
	}
	return normalize(expr)
}

type accumulator struct {
	as   string
	fn   string
	expr any
}

func groupStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	fields, ok := elements(spec)
	if !ok {
		return nil, errPathf("$group requires a document")
	}
	var (
		keyExpr any
		hasKey  bool
		accs    []accumulator
	)
	for _, f := range fields {
		if f.Key == model.IDField {
			keyExpr, hasKey = f.Value, true
			continue
		}
		ops, ok := operatorDoc(f.Value)
		if !ok || len(ops) != 1 {
			return nil, errPathf("$group field '%s' must be a single accumulator", f.Key)
		}
		accs = append(accs, accumulator{as: f.Key, fn: ops[0].Key, expr: ops[0].Value})
	}
	if !hasKey {
		return nil, errPathf("$group requires an '_id' expression")
	}
	keyOf := func(doc map[string]any) string {
		return util.JSONString(evalExpr(doc, keyExpr))
	}
	order := lo.Uniq(lo.Map(docs, func(doc map[string]any, _ int) string { return keyOf(doc) }))
	buckets := lo.GroupBy(docs, keyOf)
	out := make([]map[string]any, 0, len(order))
	for _, key := range order {
		group := buckets[key]
		result := map[string]any{model.IDField: evalExpr(group[0], keyExpr)}
		for _, acc := range accs {
			value, err := reduce(acc, group)
			if err != nil {
				return nil, err
			}
			result[acc.as] = value
		}
		out = append(out, result)
	}
	return out, nil
}

func reduce(acc accumulator, group []map[string]any) (any, error) {
	values := lo.Map(group, func(doc map[string]any, _ int) any { return evalExpr(doc, acc.expr) })
	numbers := lo.Filter(values, func(v any, _ int) bool { return isNumeric(v) })
	present := lo.Filter(values, func(v any, _ int) bool { return v != nil })
	switch acc.fn {
	case "$avg":
		if len(numbers) == 0 {
			return nil, nil
		}
		return lo.SumBy(numbers, cast.ToFloat64) / float64(len(numbers)), nil
	case "$sum":
		return lo.SumBy(numbers, cast.ToFloat64), nil
	case "$count":
		return float64(len(group)), nil
	case "$min", "$max":
		if len(present) == 0 {
			return nil, nil
		}
		best := present[0]
		for _, v := range present[1:] {
			order := sortCompare(v, best)
			if (acc.fn == "$min" && order < 0) || (acc.fn == "$max" && order > 0) {
				best = v
			}
		}
		return best, nil
	case "$first":
		return values[0], nil
	case "$last":
		return values[len(values)-1], nil
	case "$push":
		return values, nil
	}
	return nil, errPathf("unsupported accumulator '%s'", acc.fn)
}

func addFieldsStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	fields, ok := elements(spec)
	if !ok || len(fields) == 0 {
		return nil, errPathf("$addFields requires a document")
	}
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		next := cloneDoc(doc)
		for _, f := range fields {
			if err := setPath(next, f.Key, evalExpr(doc, f.Value)); err != nil {
				return nil, err
			}
		}
		out = append(out, next)
	}
	return out, nil
}

func projectStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	fields, ok := elements(spec)
	if !ok {
		return nil, errPathf("$project requires a document")
	}
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		next, err := project(doc, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}

func limitStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	n, err := cast.ToIntE(normalize(spec))
	if err != nil || n <= 0 {
		return nil, errPathf("$limit requires a positive number")
	}
	if n > len(docs) {
		n = len(docs)
	}
	return docs[:n], nil
}

func skipStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	n, err := cast.ToIntE(normalize(spec))
	if err != nil || n < 0 {
		return nil, errPathf("$skip requires a non-negative number")
	}
	if n > len(docs) {
		n = len(docs)
	}
	return docs[n:], nil
}

func countStage(docs []map[string]any, spec any) ([]map[string]any, error) {
	field, ok := spec.(string)
	if !ok || field == "" || strings.HasPrefix(field, "$") {
		return nil, errPathf("$count requires a field name")
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return []map[string]any{{field: float64(len(docs))}}, nil
}

// project applies an inclusion or exclusion projection to a document
func project(doc map[string]any, fields []bson.E) (map[string]any, error) {
	var (
		include []bson.E
		exclude []string
		dropID  bool
	)
	for _, f := range fields {
		if _, isRef := fieldPath(f.Value); isRef {
			include = append(include, f)
			continue
		}
		keep := cast.ToBool(normalize(f.Value))
		switch {
		case f.Key == model.IDField && !keep:
			dropID = true
		case f.Key == model.IDField:
		case keep:
			include = append(include, f)
		default:
			exclude = append(exclude, f.Key)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, errPathf("projection cannot mix inclusion and exclusion")
	}
	if len(include) == 0 {
		out := cloneDoc(doc)
		for _, f := range exclude {
			deletePath(out, f)
		}
		if dropID {
			delete(out, model.IDField)
		}
		return out, nil
	}
	out := map[string]any{}
	if id, ok := doc[model.IDField]; ok && !dropID {
		out[model.IDField] = id
	}
	for _, f := range include {
		var (
			value  any
			exists bool
		)
		if path, isRef := fieldPath(f.Value); isRef {
			value, exists = getPath(doc, path)
		} else {
			value, exists = getPath(doc, f.Key)
		}
		if !exists {
			continue
		}
		if err := setPath(out, f.Key, clone(value)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
