package config

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"
)

// secretFields are printed masked.
var secretFields = map[string]bool{
	"token":        true,
	"postgres_dsn": true,
}

func (c *Compositor) Print(w io.Writer, v any) {
	c.printConfig(w, v, "  ")
}

func (c *Compositor) printConfig(w io.Writer, v any, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		fieldName := fieldType.Name
		if tag, ok := fieldType.Tag.Lookup("mapstructure"); ok {
			if tag != "" {
				fieldName = tag
			}
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				fmt.Fprintf(w, "%s%s: <nil>\n", prefix, fieldName)
				continue
			}
			field = field.Elem()
		}

		switch {
		case field.Type() == reflect.TypeOf(time.Duration(0)):
			fmt.Fprintf(w, "%s%s: %s\n", prefix, fieldName, field.Interface().(time.Duration).String())
		case field.Kind() == reflect.Struct:
			fmt.Fprintf(w, "%s%s:\n", prefix, fieldName)
			c.printConfig(w, field.Addr().Interface(), prefix+"  ")
		case field.Kind() == reflect.String:
			value := field.String()
			if secretFields[fieldName] && value != "" {
				value = strings.Repeat("*", 8)
			}
			fmt.Fprintf(w, "%s%s: \"%s\"\n", prefix, fieldName, value)
		default:
			fmt.Fprintf(w, "%s%s: %v\n", prefix, fieldName, field.Interface())
		}
	}
}
