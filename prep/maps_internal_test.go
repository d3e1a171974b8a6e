package prep

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseSink(t *testing.T) {
	errClose := errors.New("disk full")
	errGenerate := errors.New("generate failed")

	var err error
	closeSink(func() error { return nil }, &err)
	require.NoError(t, err)

	closeSink(func() error { return errClose }, &err)
	require.ErrorIs(t, err, errClose)

	err = errGenerate
	closeSink(func() error { return errClose }, &err)
	require.ErrorIs(t, err, errGenerate)
	require.ErrorIs(t, err, errClose)
}
