package mounterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndError(t *testing.T) {
	t.Parallel()

	err := New(KindDomain, CodeOutOfRange, "declination %.1f out of range", 95.0)
	assert.Equal(t, KindDomain, err.Kind)
	assert.Equal(t, CodeOutOfRange, err.Code)
	assert.Contains(t, err.Error(), "95.0")
}

func TestWrapUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("serial timeout")
	err := Wrap(KindDriver, CodeSerialPortBusy, cause)
	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestWithAxis(t *testing.T) {
	t.Parallel()

	base := New(KindDriver, CodeAxisBusy, "busy")
	tagged := base.WithAxis("primary")
	assert.Equal(t, "primary", tagged.Axis)
	assert.Empty(t, base.Axis, "WithAxis must not mutate the receiver")
	assert.Contains(t, tagged.Error(), "primary axis")
}

func TestIsMatchesByKindAndCode(t *testing.T) {
	t.Parallel()

	a := Domain(CodeNotParked, "not parked")
	b := Domain(CodeNotParked, "different message, same taxonomy slot")
	c := Domain(CodeAlreadyParked, "already parked")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindDriver, Driver(CodeMaxPitch, "x").Kind)
	assert.Equal(t, KindServer, Server(CodeMount, "x").Kind)
	assert.Equal(t, KindDomain, Domain(CodeLimitViolation, "x").Kind)
}

func TestAlpacaErrorNumberMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{"not connected", Driver(CodeNotConnected, "x"), 0x407},
		{"invalid data", Domain(CodeInvalidData, "x"), 0x401},
		{"out of range", Domain(CodeOutOfRange, "x"), 0x401},
		{"unimplemented", Driver(CodeUnimplemented, "x"), 0x400},
		{"not parked", Domain(CodeNotParked, "x"), 0x40B},
		{"cancelled", ErrCancelled, 0x40B},
		{"non-taxonomy error", errors.New("boom"), 0x500},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AlpacaErrorNumber(tt.err))
		})
	}
}

func TestAlpacaErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", AlpacaErrorMessage(nil))
	assert.NotEmpty(t, AlpacaErrorMessage(Domain(CodeOutOfRange, "dec out of range")))
}

func TestCodeStringUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Unknown", Code(9999).String())
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "driver", KindDriver.String())
	assert.Equal(t, "domain", KindDomain.String())
}
