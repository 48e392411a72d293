package badger

import (
	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/util"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// applyUpdate applies the update operators to the document in place and reports whether the
// document's content changed
func applyUpdate(doc map[string]any, update bson.D) (bool, error) {
	before := util.JSONString(doc)
	id := doc[model.IDField]
	for _, op := range update {
		fields, ok := elements(op.Value)
		if !ok {
			return false, errPathf("operator '%s' requires a document", op.Key)
		}
		for _, f := range fields {
			if f.Key == model.IDField {
				return false, errPathf("field '%s' is immutable", model.IDField)
			}
			if err := applyOperator(doc, op.Key, f.Key, f.Value); err != nil {
				return false, err
			}
		}
	}
	if !equalValues(doc[model.IDField], id) {
		return false, errPathf("field '%s' is immutable", model.IDField)
	}
	return util.JSONString(doc) != before, nil
}

func applyOperator(doc map[string]any, op, field string, operand any) error {
	switch op {
	case "$set":
		return setPath(doc, field, normalize(operand))
	case "$unset":
		deletePath(doc, field)
		return nil
	case "$inc":
		delta := normalize(operand)
		if !isNumeric(delta) {
			return errPathf("$inc on '%s' requires a number", field)
		}
		current, ok := getPath(doc, field)
		if ok && current != nil && !isNumeric(current) {
			return errPathf("cannot apply $inc to non-numeric field '%s'", field)
		}
		return setPath(doc, field, cast.ToFloat64(current)+delta.(float64))
	case "$push", "$addToSet":
		arr, err := arrayAt(doc, field)
		if err != nil {
			return err
		}
		for _, item := range eachValues(operand) {
			if op == "$addToSet" && containsValue(arr, item) {
				continue
			}
			arr = append(arr, item)
		}
		return setPath(doc, field, arr)
	case "$pull":
		current, ok := getPath(doc, field)
		if !ok || current == nil {
			return nil
		}
		arr, isArr := current.([]any)
		if !isArr {
			return errPathf("cannot apply $pull to non-array field '%s'", field)
		}
		kept := make([]any, 0, len(arr))
		for _, el := range arr {
			pull, err := matchElement(el, operand)
			if err != nil {
				return err
			}
			if !pull {
				kept = append(kept, el)
			}
		}
		return setPath(doc, field, kept)
	}
	return errPathf("unsupported update operator '%s'", op)
}

func arrayAt(doc map[string]any, field string) ([]any, error) {
	current, ok := getPath(doc, field)
	if !ok || current == nil {
		return []any{}, nil
	}
	arr, isArr := current.([]any)
	if !isArr {
		return nil, errPathf("field '%s' is not an array", field)
	}
	return arr, nil
}

// eachValues unwraps a {$each: [...]} modifier into its values
func eachValues(operand any) []any {
	if ops, ok := operatorDoc(operand); ok && len(ops) == 1 && ops[0].Key == "$each" {
		if list, ok := normalize(ops[0].Value).([]any); ok {
			return list
		}
	}
	return []any{normalize(operand)}
}

func containsValue(arr []any, v any) bool {
	for _, el := range arr {
		if equalValues(el, v) {
			return true
		}
	}
	return false
}
