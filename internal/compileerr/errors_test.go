package compileerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs_MatchesKind(t *testing.T) {
	err := PathError(CodeUnknownSegment, "address.town", "unknown field %q on shape %s", "town", "Address")

	assert.True(t, errors.Is(err, ErrPathResolution))
	assert.False(t, errors.Is(err, ErrConstraint))
	assert.False(t, errors.Is(err, ErrSerialization))
}

func TestErrorsIs_ThroughWrapping(t *testing.T) {
	inner := Constraint(CodeLimit, "limit", "limit must be >= 1, got %d", 0)
	wrapped := fmt.Errorf("compile beers: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrConstraint))
	assert.Equal(t, CodeLimit, Code(wrapped))
}

func TestError_Message(t *testing.T) {
	testCases := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with field",
			err:  Constraint(CodeOffset, "offset", "offset must be >= 0, got %d", -1),
			want: "[E211] offset: offset must be >= 0, got -1",
		},
		{
			name: "without field",
			err:  Unsupported(CodeUnknownDirective, "", "unknown expression %q", "first"),
			want: `[E220] unknown expression "first"`,
		},
		{
			name: "with cause",
			err:  Serialization("name", errors.New("nil value")),
			want: "[E230] name: cannot serialize filter value: nil value",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestCode_NonCompileError(t *testing.T) {
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "path resolution", KindPathResolution.String())
	assert.Equal(t, "serialization", KindSerialization.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
