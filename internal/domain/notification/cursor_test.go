package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	orig := Cursor{
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 45, 123456000, time.UTC),
		ID:        42,
	}
	got, err := DecodeCursor(orig.Encode())
	require.NoError(t, err)
	require.Equal(t, orig.ID, got.ID)
	require.True(t, orig.CreatedAt.Equal(got.CreatedAt), "got %v", got.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, s := range []string{
		"not base64 at all!!!",
		"aGVsbG8",          // decodes but no separator
		"MTIzNDU2Nzg5Onh5", // id is not a number
		"eHk6MQ",           // timestamp is not a number
	} {
		_, err := DecodeCursor(s)
		require.Error(t, err, "input %q", s)
	}
}
