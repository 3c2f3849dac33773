package closer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloser(t *testing.T) {
	setup := func() (CloseFn, *string) {
		data := ""
		fn := CloseFn(func() error {
			data += "world"
			return nil
		})
		fn.Stack(func() error {
			data += "hello "
			return nil
		})
		fn.Stack(func() error {
			data += "1234 "
			return nil
		})
		return fn, &data
	}

	t.Run("closed", func(t *testing.T) {
		fn, data := setup()
		cancelClose, closeMaybe := fn.Maybe()
		require.NoError(t, closeMaybe())
		require.Equal(t, "1234 hello world", *data)
		cancelClose() // cancel is no-op after already closed
	})

	t.Run("canceled", func(t *testing.T) {
		fn, data := setup()
		cancelClose, closeMaybe := fn.Maybe()
		cancelClose()
		require.NoError(t, closeMaybe())
		require.Equal(t, "", *data)
	})

	t.Run("errors joined", func(t *testing.T) {
		errA := errors.New("a")
		errB := errors.New("b")
		var fn CloseFn
		fn.Stack(func() error { return errA })
		fn.Stack(func() error { return errB })
		err := fn()
		require.ErrorIs(t, err, errA)
		require.ErrorIs(t, err, errB)
	})
}
