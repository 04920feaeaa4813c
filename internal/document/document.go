// Package document classifies and walks sampled MongoDB documents.
//
// A document is a tree of scalars, ordered lists and keyed maps. Lists are
// always leaves for flattening purposes: their contents are summarized by the
// list itself (type "array" plus its length), never walked element-wise.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Type tags reported for values in the closed document model.
const (
	TypeNull   = "null"
	TypeBool   = "bool"
	TypeInt    = "int"
	TypeDouble = "double"
	TypeString = "string"
	TypeArray  = "array"
	TypeObject = "object"
)

// Entry is one flattened (path, value) pair.
type Entry struct {
	Path  string
	Value any
}

// TypeName returns the type tag of v. The first matching class wins:
// null, bool, int, double, string, array, object. BSON wrapper types map to
// their BSON alias; anything else is tagged with its Go type name.
func TypeName(v any) string {
	switch v.(type) {
	case nil, bson.Null:
		return TypeNull
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return TypeInt
	case float32, float64:
		return TypeDouble
	case string:
		return TypeString
	case bson.A, []any:
		return TypeArray
	case bson.D, bson.M, map[string]any:
		return TypeObject
	case bson.ObjectID:
		return "objectId"
	case bson.DateTime, time.Time:
		return "date"
	case bson.Decimal128:
		return "decimal"
	case bson.Binary:
		return "binData"
	case bson.Timestamp:
		return "timestamp"
	case bson.Regex:
		return "regex"
	case bson.JavaScript, bson.CodeWithScope:
		return "javascript"
	case bson.Symbol:
		return "symbol"
	case bson.MinKey:
		return "minKey"
	case bson.MaxKey:
		return "maxKey"
	case bson.Undefined:
		return "undefined"
	case bson.DBPointer:
		return "dbPointer"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsContainer reports whether v is a list or a nested document.
func IsContainer(v any) bool {
	switch TypeName(v) {
	case TypeArray, TypeObject:
		return true
	}
	return false
}

// ArrayLen returns the length of a list value and true, or 0 and false for
// anything that is not a list.
func ArrayLen(v any) (int, bool) {
	switch a := v.(type) {
	case bson.A:
		return len(a), true
	case []any:
		return len(a), true
	}
	return 0, false
}

// Depth estimates the nesting depth of v. A scalar, an empty list and an
// empty map each count 1; a non-empty container counts 1 plus its deepest
// child. Wrapping a document in another document adds exactly 1.
func Depth(v any) int {
	return depthAt(v, 0)
}

func depthAt(v any, current int) int {
	deepest := current + 1
	visit := func(child any) {
		if d := depthAt(child, current+1); d > deepest {
			deepest = d
		}
	}
	switch c := v.(type) {
	case bson.D:
		for _, e := range c {
			visit(e.Value)
		}
	case bson.M:
		for _, child := range c {
			visit(child)
		}
	case map[string]any:
		for _, child := range c {
			visit(child)
		}
	case bson.A:
		for _, child := range c {
			visit(child)
		}
	case []any:
		for _, child := range c {
			visit(child)
		}
	}
	return deepest
}

// Flatten returns one entry per leaf scalar and per list reachable from doc
// without crossing a list boundary. Nested documents are descended into with
// dot-joined paths and are not reported themselves. Each path appears once.
func Flatten(doc any) []Entry {
	var out []Entry
	seen := make(map[string]bool)
	flattenInto(doc, "", seen, &out)
	return out
}

func flattenInto(v any, prefix string, seen map[string]bool, out *[]Entry) {
	forEachField(v, func(key string, value any) {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if TypeName(value) == TypeObject {
			flattenInto(value, path, seen, out)
			return
		}
		if seen[path] {
			return
		}
		seen[path] = true
		*out = append(*out, Entry{Path: path, Value: value})
	})
}

// forEachField visits the fields of a nested document. Unordered maps are
// visited in sorted key order so flattening is deterministic.
func forEachField(v any, fn func(key string, value any)) {
	switch d := v.(type) {
	case bson.D:
		for _, e := range d {
			fn(e.Key, e.Value)
		}
	case bson.M:
		for _, k := range sortedKeys(d) {
			fn(k, d[k])
		}
	case map[string]any:
		for _, k := range sortedKeys(d) {
			fn(k, d[k])
		}
	}
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the BSON-encoded size of doc in bytes. ok is false when the
// document cannot be encoded; such documents are left out of size statistics
// instead of being counted as zero.
func Size(doc any) (size int, ok bool) {
	raw, err := bson.Marshal(doc)
	if err != nil || len(raw) <= 0 {
		return 0, false
	}
	return len(raw), true
}

// CanonicalKey serializes a scalar to a stable string used for distinct-value
// tracking. Values JSON cannot represent fall back to their default string form.
func CanonicalKey(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
