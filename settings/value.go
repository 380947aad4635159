package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyValue is returned when a settings value has no content.
	ErrEmptyValue = errors.New("settings: empty value")
	// ErrMalformedValue is returned when a settings value is not valid JSON.
	ErrMalformedValue = errors.New("settings: malformed value")
	// ErrScalarValue is returned for null, booleans, numbers and strings.
	ErrScalarValue = errors.New("settings: value must be an object or a list")
	// ErrUnknownKind is returned when a stored kind tag is not recognized.
	ErrUnknownKind = errors.New("settings: unknown value kind")
)

// Kind tags the variant held by a [Value].
type Kind uint8

const (
	KindInvalid Kind = iota
	KindObject
	KindList
)

// String returns the stored tag for k.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// ParseKind maps a stored tag back to a Kind.
func ParseKind(tag string) (Kind, error) {
	switch tag {
	case "object":
		return KindObject, nil
	case "list":
		return KindList, nil
	default:
		return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
	}
}

// Value is a structured settings value. The zero Value is invalid.
//
// The payload is kept as compacted JSON so a value written and read back
// compares byte-for-byte with what the client sent.
type Value struct {
	kind Kind
	raw  []byte
}

// Parse validates data as a JSON object or array.
func Parse(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Value{}, ErrEmptyValue
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}

	compact := buf.Bytes()
	switch compact[0] {
	case '{':
		return Value{kind: KindObject, raw: compact}, nil
	case '[':
		return Value{kind: KindList, raw: compact}, nil
	default:
		return Value{}, ErrScalarValue
	}
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(data string) Value {
	v, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return v
}

// FromStored rebuilds a value persisted as a kind tag plus JSON text. The tag
// must agree with the payload.
func FromStored(tag string, payload []byte) (Value, error) {
	kind, err := ParseKind(tag)
	if err != nil {
		return Value{}, err
	}
	v, err := Parse(payload)
	if err != nil {
		return Value{}, err
	}
	if v.kind != kind {
		return Value{}, fmt.Errorf("%w: tag %s does not match %s payload", ErrUnknownKind, kind, v.kind)
	}
	return v, nil
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v holds no value.
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// JSON returns a copy of the compacted JSON payload.
func (v Value) JSON() []byte {
	out := make([]byte, len(v.raw))
	copy(out, v.raw)
	return out
}

// Equal reports whether v and other hold the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && bytes.Equal(v.raw, other.raw)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("null"), nil
	}
	return v.JSON(), nil
}

// UnmarshalJSON implements json.Unmarshaler and applies the same checks as Parse.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
