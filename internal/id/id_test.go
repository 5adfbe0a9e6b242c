package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUUID(t *testing.T) {
	a, b := New(), New()
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFromHeader(t *testing.T) {
	assert.Equal(t, "req-123_abc.d:e", FromHeader(" req-123_abc.d:e "))

	for _, bad := range []string{"", "has space", "new\nline", "<script>", strings.Repeat("a", 129)} {
		got := FromHeader(bad)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "input %q", bad)
	}
}
