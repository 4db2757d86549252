// Package pagination implements opaque keyset cursors over a creation
// timestamp and row id.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const separator = ","

// RFC3339Nano keeps full timestamp precision across a round trip.
const timeFormat = time.RFC3339Nano

// EncodeCursor renders the position after the given row as an opaque
// string.
func EncodeCursor(ts time.Time, id int64) string {
	key := ts.UTC().Format(timeFormat) + separator + strconv.FormatInt(id, 10)
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor recovers the timestamp and id from an encoded cursor.
func DecodeCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(raw), separator, 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("invalid cursor format")
	}

	ts, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return ts.UTC(), id, nil
}
