package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func panickyMul() (err error) {
	defer Recover(&err, "panickyMul")
	a := mat.NewDense(2, 3, nil)
	b := mat.NewDense(2, 3, nil)
	var c mat.Dense
	c.Mul(a, b) // gonum panics with ErrShape
	return nil
}

func TestRecover_GonumPanic(t *testing.T) {
	err := panickyMul()
	require.Error(t, err)

	var pe *PanicError
	require.True(t, As(err, &pe))
	assert.Equal(t, "panickyMul", pe.Operation)
	assert.NotEmpty(t, pe.StackTrace)
	assert.Contains(t, pe.String(), "Stack trace:")
}

func TestRecover_WithoutPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "noop")
		return nil
	}
	assert.NoError(t, fn())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original")
	fn := func() (err error) {
		defer Recover(&err, "both")
		err = original
		panic("boom")
	}
	err := fn()
	require.Error(t, err)
	assert.True(t, Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	assert.NoError(t, SafeExecute("ok", func() error { return nil }))

	sentinel := fmt.Errorf("fn error")
	assert.Equal(t, sentinel, SafeExecute("err", func() error { return sentinel }))

	err := SafeExecute("panic", func() error { panic(fmt.Errorf("inner")) })
	var pe *PanicError
	require.True(t, As(err, &pe))
	assert.EqualError(t, pe.Unwrap(), "inner")
}
