package validator

import (
	"reflect"
	"strings"
)

// jsonFieldName reports fields by their JSON name so error details match the request body.
func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}
