package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 45, 123456789, time.UTC)

	cursor := EncodeCursor(ts, 42)
	gotTS, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(gotTS))
	assert.Equal(t, int64(42), gotID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, _, err := DecodeCursor("not base64!!!")
	assert.Error(t, err)

	_, _, err = DecodeCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	assert.Error(t, err)
}
