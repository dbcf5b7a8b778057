// Package pagination parses page_size/page_token query parameters and
// encodes keyset cursors as opaque page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits page_size.
	DefaultPageSize = 50
	// MaxPageSize caps page_size to prevent unbounded queries.
	MaxPageSize = 200
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// Cursor is the payload of a page token: the last ID of the previous page.
type Cursor struct {
	After string `json:"after,omitempty"`
}

// Params bundles the pagination values extracted from a request.
type Params struct {
	PageSize int
	Cursor   Cursor
}

// Parse reads page_size and page_token.
func Parse(values url.Values) (Params, error) {
	size, err := parsePageSize(values.Get("page_size"))
	if err != nil {
		return Params{}, err
	}
	cursor, err := DecodeToken(values.Get("page_token"))
	if err != nil {
		return Params{}, err
	}
	return Params{PageSize: size, Cursor: cursor}, nil
}

func parsePageSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPageSize, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > MaxPageSize {
		value = MaxPageSize
	}
	return value, nil
}

// EncodeToken serialises the cursor into a base64 URL-safe page token.
// An empty cursor yields an empty token.
func EncodeToken(cursor Cursor) string {
	if cursor.After == "" {
		return ""
	}
	data, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}

// Page slices one extra item off a fetch of PageSize+1 rows and returns the
// token for the next page, or "" on the last page.
func Page[T any](items []T, pageSize int, idOf func(T) string) ([]T, string) {
	if pageSize <= 0 || len(items) <= pageSize {
		return items, ""
	}
	items = items[:pageSize]
	return items, EncodeToken(Cursor{After: idOf(items[len(items)-1])})
}
