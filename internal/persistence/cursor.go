package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/liftlog/internal/domain"
)

// EncodeCursor serialises a history page cursor into an opaque token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.Date.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// the first page and yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", domain.ErrValidation, err)
	}
	date, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: cursor: malformed token", domain.ErrValidation)
	}
	ts, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", domain.ErrValidation, err)
	}
	return &domain.Cursor{Date: ts, ID: id}, nil
}
