package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor marks a cursor token that failed to decode. Callers must
// surface it, never fall back to an unbounded query.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// Cursor identifies a boundary position in a conversation's transcript.
type Cursor struct {
	MessageID string
	CreatedAt time.Time
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := c.MessageID + "|" + strconv.FormatInt(c.CreatedAt.UnixNano(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode. Any malformed or tampered
// input yields ErrInvalidCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	id, ts, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}

	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}

	return Cursor{MessageID: id, CreatedAt: time.Unix(0, nanos).UTC()}, nil
}
