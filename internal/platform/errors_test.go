package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyGroupRestricted(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"message", 404, `{"error":"Group not found"}`, true},
		{"code", 404, `{"error_code":"groupNotFound"}`, true},
		{"plain 404", 404, `{"error":"Record not found"}`, false},
		{"other status", 403, `{"error":"Group not found"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(tc.status, []byte(tc.body))
			assert.Equal(t, tc.want, errors.Is(err, ErrGroupRestricted))
			assert.Equal(t, tc.status, StatusCode(err))
		})
	}
}

func TestClassifiedErrorSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("reblog: %w", Classify(404, []byte("group_not_found")))
	require.ErrorIs(t, err, ErrGroupRestricted)
	assert.Equal(t, 404, StatusCode(err))
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(Classify(401, nil)))
	assert.False(t, IsUnauthorized(Classify(500, nil)))
	assert.False(t, IsUnauthorized(&TransportError{Err: errors.New("reset")}))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "hello &\nworld\n\nbye", PlainText(`<p>hello &amp;<br>world</p><p>bye</p>`))
	assert.Equal(t, "no markup", PlainText("  no markup "))
}
