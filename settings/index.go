package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxIndexLength bounds the byte length of an index.
const MaxIndexLength = 64

// ErrInvalidIndex is returned for indexes that are empty, too long, negative,
// fractional or contain reserved characters.
var ErrInvalidIndex = errors.New("settings: invalid index")

// Index is the canonical key of a settings entry.
type Index string

// NewIndex validates s as an index.
func NewIndex(s string) (Index, error) {
	switch {
	case s == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidIndex)
	case len(s) > MaxIndexLength:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidIndex, MaxIndexLength)
	case strings.ContainsAny(s, ".$\x00"):
		// Reserved in document-store field paths.
		return "", fmt.Errorf("%w: contains a reserved character", ErrInvalidIndex)
	case strings.TrimSpace(s) != s:
		return "", fmt.Errorf("%w: leading or trailing space", ErrInvalidIndex)
	}
	return Index(s), nil
}

// IndexFromInt canonicalizes a non-negative integer index.
func IndexFromInt(n int64) (Index, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: negative", ErrInvalidIndex)
	}
	return Index(strconv.FormatInt(n, 10)), nil
}

// ParseIndex accepts a JSON string or a non-negative JSON integer.
func ParseIndex(raw json.RawMessage) (Index, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: missing", ErrInvalidIndex)
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidIndex, err)
		}
		return NewIndex(s)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: must be a string or integer", ErrInvalidIndex)
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: must be an integer", ErrInvalidIndex)
	}
	return IndexFromInt(i)
}

// String returns the canonical form.
func (i Index) String() string { return string(i) }

// UnmarshalJSON implements json.Unmarshaler.
func (i *Index) UnmarshalJSON(data []byte) error {
	parsed, err := ParseIndex(data)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
