package errors_test

import (
	stderrors "errors"
	"testing"

	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "[Store.Login] %s", "ignored"))
	})

	t.Run("wraps with context", func(t *testing.T) {
		err := apperrors.Wrapf(apperrors.ErrNotFound, "[kv.Get] key %q", "auth-storage")
		require.EqualError(t, err, `[kv.Get] key "auth-storage": not found`)
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("as finds typed errors", func(t *testing.T) {
		type custom struct{ error }
		err := apperrors.Wrapf(custom{stderrors.New("boom")}, "outer")
		var target custom
		require.True(t, apperrors.As(err, &target))
	})
}
