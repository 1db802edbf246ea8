package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestValidate(t *testing.T) {
	start := date(t, "2024-01-01")

	t.Run("open interval is valid", func(t *testing.T) {
		assert.True(t, Validate(start, nil))
	})

	t.Run("end after start is valid", func(t *testing.T) {
		end := date(t, "2024-03-01")
		assert.True(t, Validate(start, &end))
	})

	t.Run("same-day interval is valid", func(t *testing.T) {
		end := start
		assert.True(t, Validate(start, &end))
	})

	t.Run("end before start is invalid", func(t *testing.T) {
		end := date(t, "2023-12-31")
		assert.False(t, Validate(start, &end))
	})
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}
