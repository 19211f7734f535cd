package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface over the value types allowed in a query.
// Only IRString, IRInt, IRBool, IRArray and IRObject implement it.
// There is no float type: 0.1 and 0.10000000000000001 must not produce
// different request keys, so queries carry floats as decimal strings.
type IRValue interface {
	irValue()
}

// IRString is a string query value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer query value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean query value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is a list of values. In a query string it becomes a repeated key.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps keys to values. A store's Query is an IRObject.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewQuery converts a plain Go map into an IRObject.
// Accepted leaf types are string, bool, all integer kinds and floats.
// A float becomes the IRString of its shortest decimal form, which is what
// the query string carries anyway. null, NaN and infinities are rejected.
func NewQuery(m map[string]any) (IRObject, error) {
	if m == nil {
		return nil, nil
	}
	obj := make(IRObject, len(m))
	for k, v := range m {
		val, err := toQueryValue(v)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", k, err)
		}
		obj[k] = val
	}
	return obj, nil
}

// MustQuery is like NewQuery but panics on error.
// Use only in tests or when inputs are literals.
func MustQuery(m map[string]any) IRObject {
	q, err := NewQuery(m)
	if err != nil {
		panic(err)
	}
	return q
}

// Clone returns a deep copy of the object.
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	case IRObject:
		return val.Clone()
	default:
		return v
	}
}

// Encode renders the object as url.Values.
// Arrays become repeated keys; nested objects are sent as canonical JSON.
func (obj IRObject) Encode() (url.Values, error) {
	values := make(url.Values, len(obj))
	for _, k := range obj.SortedKeys() {
		switch val := obj[k].(type) {
		case IRArray:
			for i, elem := range val {
				s, err := queryScalar(elem)
				if err != nil {
					return nil, fmt.Errorf("query %q[%d]: %w", k, i, err)
				}
				values.Add(k, s)
			}
		default:
			s, err := queryScalar(val)
			if err != nil {
				return nil, fmt.Errorf("query %q: %w", k, err)
			}
			values.Set(k, s)
		}
	}
	return values, nil
}

func queryScalar(v IRValue) (string, error) {
	switch val := v.(type) {
	case IRString:
		return string(val), nil
	case IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case IRBool:
		return strconv.FormatBool(bool(val)), nil
	case IRObject, IRArray:
		b, err := MarshalCanonical(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported query value %T", v)
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some keys differently.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// UnmarshalJSON implements json.Unmarshaler for IRObject. Numbers with a
// fraction or exponent decode as decimal strings, as in NewQuery.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	raw, err := decodeNumbers(data)
	if err != nil {
		return err
	}
	v, err := toQueryValue(raw)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	if obj == nil {
		return []byte("{}"), nil
	}
	return MarshalCanonical(obj)
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

// UnmarshalIRValue decodes JSON into an IRValue.
// Floats and null are rejected.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	raw, err := decodeNumbers(data)
	if err != nil {
		return nil, err
	}
	return toIRValue(raw)
}

func decodeNumbers(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// toIRValue converts a decoded or literal Go value to an IRValue. Floats
// are an error.
func toIRValue(v any) (IRValue, error) {
	return convertValue(v, false)
}

// toQueryValue is toIRValue with floats written as decimal strings.
func toQueryValue(v any) (IRValue, error) {
	return convertValue(v, true)
}

func formatFloat(f float64, bits int) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number: %v", f)
	}
	return IRString(strconv.FormatFloat(f, 'f', -1, bits)), nil
}

func convertValue(v any, floats bool) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return IRInt(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IRInt(n), nil
		}
		if !floats {
			return nil, fmt.Errorf("floats are forbidden: %s", val)
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", val, err)
		}
		return formatFloat(f, 64)
	case float32:
		if !floats {
			return nil, fmt.Errorf("floats are forbidden: %v", val)
		}
		return formatFloat(float64(val), 32)
	case float64:
		if !floats {
			return nil, fmt.Errorf("floats are forbidden: %v", val)
		}
		return formatFloat(val, 64)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := convertValue(elem, floats)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case []string:
		arr := make(IRArray, len(val))
		for i, s := range val {
			arr[i] = IRString(s)
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := convertValue(elem, floats)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
