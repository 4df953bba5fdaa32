package sysid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCreatesOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "system_uuid")

	id, err := Resolve(path)
	require.NoError(t, err)
	require.NotZero(t, id)

	again, err := Resolve(path)
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestResolveRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system_uuid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-uuid"), 0644))

	_, err := Resolve(path)
	require.ErrorIs(t, err, errMalformed)
}
