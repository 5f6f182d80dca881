package database

import (
	"database/sql"
	"fmt"
	"reflect"
)

// structToInsert extracts column names, placeholders and values from a struct
// using `db:` tags. Fields with db:"-" are skipped.
func structToInsert(record interface{}) (cols, placeholders []string, vals []interface{}) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
		placeholders = append(placeholders, "?")
		vals = append(vals, v.Field(i).Interface())
	}
	return
}

// scanRows scans sql.Rows into a slice of structs using `db:` tags.
func scanRows(rows *sql.Rows, dest interface{}) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("Select: dest must be a pointer to a slice")
	}
	sliceVal := dv.Elem()
	elemType := sliceVal.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	for rows.Next() {
		elem := reflect.New(elemType).Elem()
		if err := rows.Scan(fieldPointers(elem, cols)...); err != nil {
			return err
		}
		if isPtr {
			sliceVal.Set(reflect.Append(sliceVal, elem.Addr()))
		} else {
			sliceVal.Set(reflect.Append(sliceVal, elem))
		}
	}
	return rows.Err()
}

// scanRow scans a single sql.Row into dest struct in field order.
func scanRow(row *sql.Row, dest interface{}) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr {
		return fmt.Errorf("Get: dest must be a pointer")
	}
	elem := dv.Elem()
	if elem.Kind() != reflect.Struct {
		return row.Scan(dest)
	}
	var ptrs []interface{}
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Type().Field(i)
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			ptrs = append(ptrs, elem.Field(i).Addr().Interface())
		}
	}
	return row.Scan(ptrs...)
}

// fieldPointers maps column names to struct field pointers via `db:` tags.
func fieldPointers(elem reflect.Value, cols []string) []interface{} {
	tagMap := map[string]interface{}{}
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag != "" && tag != "-" {
			tagMap[tag] = elem.Field(i).Addr().Interface()
		}
	}
	ptrs := make([]interface{}, len(cols))
	for i, c := range cols {
		if p, ok := tagMap[c]; ok {
			ptrs[i] = p
		} else {
			var discard interface{}
			ptrs[i] = &discard
		}
	}
	return ptrs
}
