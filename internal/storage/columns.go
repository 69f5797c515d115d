package storage

import (
	"reflect"
)

// ColumnTag is the struct tag holding a record's column name.
var ColumnTag = "db"

func structValue(input any) reflect.Value {
	v := reflect.ValueOf(input)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}
	return v
}

// Columns returns the column names of a record type in field order.
func Columns(input any) []string {
	v := structValue(input)
	t := v.Type()

	result := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			continue
		}
		tag := t.Field(i).Tag.Get(ColumnTag)
		if tag == "" || tag == "-" {
			continue
		}
		result = append(result, tag)
	}
	return result
}

// Values returns the column values of a record in the order of Columns.
func Values(input any) []any {
	v := structValue(input)
	t := v.Type()

	result := make([]any, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			continue
		}
		tag := t.Field(i).Tag.Get(ColumnTag)
		if tag == "" || tag == "-" {
			continue
		}
		result = append(result, v.Field(i).Interface())
	}
	return result
}

// ToMap returns the record as a column-name to value map. Nil pointers are
// kept as typed nils.
func ToMap(input any) map[string]any {
	cols := Columns(input)
	vals := Values(input)

	result := make(map[string]any, len(cols))
	for i, c := range cols {
		result[c] = vals[i]
	}
	return result
}
