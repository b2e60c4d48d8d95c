// Path: internal/parser/extract.go
package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// extractor reads one candidate value for a field. The bool reports whether
// the candidate was present and usable.
type extractor[T any] func(item gjson.Result) (T, bool)

// first runs the chain in order and returns the first usable value.
func first[T any](item gjson.Result, chain []extractor[T]) (T, bool) {
	for _, ex := range chain {
		if v, ok := ex(item); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// truthy mirrors how loosely typed upstream payloads mark a value as unset:
// null, false, zero, the empty string and empty containers all count as absent.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		if v.IsObject() {
			return len(v.Map()) > 0
		}
	}
	return false
}

// firstTruthy returns the first truthy value among paths.
func firstTruthy(item gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := item.Get(p); truthy(v) {
			return v
		}
	}
	return gjson.Result{}
}

// text returns the first truthy value among paths rendered as a string.
// Strings come back as-is and numbers in their raw JSON form; anything else
// is treated as absent.
func text(paths ...string) extractor[string] {
	return func(item gjson.Result) (string, bool) {
		v := firstTruthy(item, paths...)
		switch v.Type {
		case gjson.String:
			return v.Str, true
		case gjson.Number:
			return v.Raw, true
		}
		return "", false
	}
}

// trimmed is like text but only accepts strings and strips surrounding space.
func trimmed(paths ...string) extractor[string] {
	return func(item gjson.Result) (string, bool) {
		v := firstTruthy(item, paths...)
		if v.Type != gjson.String {
			return "", false
		}
		s := strings.TrimSpace(v.Str)
		return s, s != ""
	}
}

// number returns the value at path when it is numeric, zero included.
func number(path string) extractor[int64] {
	return func(item gjson.Result) (int64, bool) {
		v := item.Get(path)
		if v.Type != gjson.Number {
			return 0, false
		}
		return int64(v.Num), true
	}
}

// truthyNumber picks the first truthy value among paths and accepts it only
// when numeric. A zero in an earlier path falls through to later ones.
func truthyNumber(paths ...string) extractor[int64] {
	return func(item gjson.Result) (int64, bool) {
		v := firstTruthy(item, paths...)
		if v.Type != gjson.Number {
			return 0, false
		}
		return int64(v.Num), true
	}
}

// within scopes a chain to the first truthy object among containers.
func within[T any](chain []extractor[T], containers ...string) extractor[T] {
	return func(item gjson.Result) (T, bool) {
		obj := firstTruthy(item, containers...)
		if !obj.IsObject() {
			var zero T
			return zero, false
		}
		return first(obj, chain)
	}
}

// stringList collects the string elements of an array, or wraps a lone string.
func stringList(v gjson.Result) []string {
	if v.Type == gjson.String {
		if v.Str == "" {
			return nil
		}
		return []string{v.Str}
	}
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, el := range v.Array() {
		if el.Type == gjson.String {
			out = append(out, el.Str)
		}
	}
	return out
}
