package pkg

import (
	"encoding/json"
	"io"
	"reflect"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// patchValidator checks partial documents against the same binding tags
// gin uses for full ones.
var patchValidator = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

// BindPatch decodes a partial JSON document into obj and validates only the
// fields present in the body. It returns the present top level JSON keys in
// sorted order. On failure it sends the error response and returns false.
func BindPatch(c *gin.Context, obj any) ([]string, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		validationErrorWithType(c, err, nil)
		return nil, false
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(body, &present); err != nil {
		validationErrorWithType(c, err, nil)
		return nil, false
	}
	if err := json.Unmarshal(body, obj); err != nil {
		validationErrorWithType(c, err, nil)
		return nil, false
	}

	keys := make([]string, 0, len(present))
	for k := range present {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if fields := structFields(obj, keys); len(fields) > 0 {
		if err := patchValidator.StructPartial(obj, fields...); err != nil {
			validationErrorWithType(c, err, obj)
			return nil, false
		}
	}
	return keys, true
}

// structFields maps JSON keys to the field names StructPartial expects.
// Names are relative to obj, which StructPartial prefixes with the type
// name itself. A struct valued field also names its direct fields so an
// embedded group such as "discount" is validated as a whole. Keys without a
// matching field are skipped.
func structFields(obj any, keys []string) []string {
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	byTag := make(map[string]string)
	for field, tag := range buildJSONTagMap(obj) {
		byTag[tag] = field
	}
	var out []string
	for _, k := range keys {
		field, ok := byTag[k]
		if !ok {
			continue
		}
		out = append(out, field)
		sf, ok := t.FieldByName(field)
		if !ok || sf.Type.Kind() != reflect.Struct {
			continue
		}
		for i := 0; i < sf.Type.NumField(); i++ {
			if inner := sf.Type.Field(i); inner.IsExported() {
				out = append(out, field+"."+inner.Name)
			}
		}
	}
	return out
}
