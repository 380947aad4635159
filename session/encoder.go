package session

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 1

	// TokenHashLength is the length of a hex-encoded SHA-256 token hash.
	TokenHashLength = 64
)

// ErrInvalidSession is returned when a stored blob cannot be decoded.
var ErrInvalidSession = errors.New("invalid session encoding")

// Encode serializes s. Layout (offsets are 0-based):
//
//	[0]      version
//	[1:65]   token hash (hex)
//	[65]     user ID length, then user ID
//	         created at (int64 big-endian, ms)
//	         expires at (int64 big-endian, ms)
func Encode(s *Session) ([]byte, error) {
	if len(s.TokenHash) != TokenHashLength {
		return nil, errors.New("token hash must be 64 hex characters")
	}
	if _, err := hex.DecodeString(s.TokenHash); err != nil {
		return nil, errors.New("token hash must be hex")
	}
	if s.UserID == "" {
		return nil, errors.New("userID is required")
	}
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + TokenHashLength + 1 + len(s.UserID) + 16)

	buf.WriteByte(sessionFormatVersionCurrent)
	buf.WriteString(s.TokenHash)

	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. SessionID is left empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrInvalidSession
	}
	if version != sessionFormatVersionCurrent {
		return nil, ErrInvalidSession
	}

	s := &Session{}

	hash := make([]byte, TokenHashLength)
	if _, err := io.ReadFull(reader, hash); err != nil {
		return nil, ErrInvalidSession
	}
	s.TokenHash = string(hash)

	userLen, err := reader.ReadByte()
	if err != nil || userLen == 0 {
		return nil, ErrInvalidSession
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, ErrInvalidSession
	}
	s.UserID = string(userID)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrInvalidSession
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrInvalidSession
	}
	if reader.Len() != 0 {
		return nil, ErrInvalidSession
	}

	return s, nil
}
