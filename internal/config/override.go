package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(Duration(0))

// ApplyOverrides applies --set key=value pairs to a loaded Config.
// Keys use dot notation for nested fields (e.g. "activity_log.enabled") and
// for environment entries (e.g. "env.EDITOR=vi"). Returns an error for
// unknown keys or type mismatches. The result is validated again.
func ApplyOverrides(cfg *Config, overrides []string) error {
	for _, ov := range overrides {
		idx := strings.IndexByte(ov, '=')
		if idx < 0 {
			return fmt.Errorf("invalid override %q: must be key=value", ov)
		}
		key := ov[:idx]
		value := ov[idx+1:]

		if err := setField(cfg, key, value); err != nil {
			return fmt.Errorf("override %q: %w", key, err)
		}
	}
	return cfg.Validate()
}

// setField sets a field on the Config struct by yaml tag path (dot-separated).
func setField(cfg *Config, key, value string) error {
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := findFieldByYAMLTag(v.Type(), part)
		if !ok {
			return fmt.Errorf("unknown field %q", key)
		}

		fv := v.FieldByIndex(field.Index)
		rest := parts[i+1:]

		if fv.Kind() == reflect.Map {
			if len(rest) == 0 {
				return fmt.Errorf("field %q: set individual entries as %s.NAME=value", key, part)
			}
			if fv.IsNil() {
				fv.Set(reflect.MakeMap(fv.Type()))
			}
			fv.SetMapIndex(reflect.ValueOf(strings.Join(rest, ".")), reflect.ValueOf(value))
			return nil
		}

		// If this is an intermediate path segment, descend into the struct.
		if len(rest) > 0 {
			if fv.Kind() != reflect.Struct {
				return fmt.Errorf("field %q is not a struct, cannot access nested field", part)
			}
			v = fv
			continue
		}

		// Terminal segment: set the value.
		return setTypedValue(fv, value, key)
	}

	return nil
}

// setTypedValue sets a reflect.Value from a string, with type coercion.
func setTypedValue(fv reflect.Value, value, key string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("field %q: expected duration (e.g. 2s), got %q", key, value)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("field %q: expected bool (true/false, yes/no, on/off), got %q", key, value)
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %q: expected int, got %q", key, value)
		}
		fv.SetInt(int64(n))
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("field %q: unsupported type %s", key, fv.Type())
		}
		fv.Set(reflect.ValueOf(strings.Fields(value)))
	default:
		return fmt.Errorf("field %q: unsupported type %s", key, fv.Type())
	}
	return nil
}

// parseBool accepts the spellings people use in YAML and on the command
// line: true/false, yes/no, on/off, 1/0.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool: %q", s)
}

func findFieldByYAMLTag(t reflect.Type, tag string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name != "" && name == tag {
			return f, true
		}
	}
	return reflect.StructField{}, false
}
