package failure

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	sentinel := New(NotFound, "order not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: Internal},
		{name: "plain", err: errors.New("boom"), want: Internal},
		{name: "sentinel", err: sentinel, want: NotFound},
		{name: "wrapped sentinel", err: errors.Wrapf(sentinel, "order %d", 7), want: NotFound},
		{name: "wrap helper", err: Wrap(Upstream, errors.New("dial tcp"), "buyer lookup"), want: Upstream},
		{name: "formatted", err: Newf(Conflict, "order %d is already paid", 1), want: Conflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(Invalid, nil, "noop"))
	assert.False(t, Is(nil, Internal))
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(Upstream, errors.New("connection refused"), "get buyer 1")
	assert.Equal(t, "get buyer 1: connection refused", err.Error())
	assert.Equal(t, "upstream", Upstream.String())
}
