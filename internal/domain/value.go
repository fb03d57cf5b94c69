package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Value is a normalized, kind-checked data element value
type Value struct {
	Kind   ValueKind
	Bool   bool
	Token  string
	Number string
	Float  float64
	Text   string
}

// BoolValue builds a boolean value
func BoolValue(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// TokenValue builds an enum value
func TokenValue(token string) Value { return Value{Kind: KindEnum, Token: token} }

// TextValue builds a free-text value
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// String renders the value the way it is substituted into phrase templates
func (v Value) String() string {
	switch v.Kind {
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindEnum:
		return v.Token
	case KindNumeric, KindNumericWithUnit:
		return v.Number
	default:
		return v.Text
	}
}

// Equal compares two values of the same kind family. Numbers compare by magnitude.
func (v Value) Equal(o Value) bool {
	if v.Kind.IsNumeric() && o.Kind.IsNumeric() {
		return v.Float == o.Float
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBoolean:
		return v.Bool == o.Bool
	case KindEnum:
		return v.Token == o.Token
	default:
		return v.Text == o.Text
	}
}

// MarshalJSON emits the natural JSON form of the value
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBoolean:
		return json.Marshal(v.Bool)
	case KindNumeric, KindNumericWithUnit:
		return []byte(v.Number), nil
	default:
		return json.Marshal(v.String())
	}
}

var plainDecimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// NumberValue normalizes a raw numeric input. Plain decimal json.Number literals keep
// the precision they were written with; exponent forms and Go floats are rendered in
// shortest fixed notation.
func NumberValue(kind ValueKind, raw any) (Value, error) {
	var literal string
	var f float64

	switch n := raw.(type) {
	case json.Number:
		s := strings.TrimSpace(string(n))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a number", s)
		}
		f = parsed
		if plainDecimal.MatchString(s) {
			literal = s
		}
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f, literal = float64(n), strconv.Itoa(n)
	case int8:
		f, literal = float64(n), strconv.FormatInt(int64(n), 10)
	case int16:
		f, literal = float64(n), strconv.FormatInt(int64(n), 10)
	case int32:
		f, literal = float64(n), strconv.FormatInt(int64(n), 10)
	case int64:
		f, literal = float64(n), strconv.FormatInt(n, 10)
	case uint:
		f, literal = float64(n), strconv.FormatUint(uint64(n), 10)
	case uint8:
		f, literal = float64(n), strconv.FormatUint(uint64(n), 10)
	case uint16:
		f, literal = float64(n), strconv.FormatUint(uint64(n), 10)
	case uint32:
		f, literal = float64(n), strconv.FormatUint(uint64(n), 10)
	case uint64:
		f, literal = float64(n), strconv.FormatUint(n, 10)
	default:
		return Value{}, fmt.Errorf("expected a number, got %s", Describe(raw))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("number must be finite")
	}
	if literal == "" {
		literal = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return Value{Kind: kind, Number: literal, Float: f}, nil
}

// IsInteger reports whether the numeric value has no fractional part
func (v Value) IsInteger() bool {
	return v.Float == math.Trunc(v.Float)
}

// Describe names the JSON type of a raw input value for messages
func Describe(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "a number"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
