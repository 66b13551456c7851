package fs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob"
)

func TestStore_PutOverwritesAndLists(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "7/mapping_part.xlsx", bytes.NewBufferString("v1")))
	require.NoError(t, s.Put(ctx, "7/mapping_part.xlsx", bytes.NewBufferString("v2")))
	require.NoError(t, s.Put(ctx, "8/mapping_part.xlsx", bytes.NewBufferString("other")))

	rc, err := s.Get(ctx, "7/mapping_part.xlsx")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "v2", string(b))

	keys, err := s.List(ctx, "7/")
	require.NoError(t, err)
	assert.Equal(t, []string{"7/mapping_part.xlsx"}, keys)

	ok, err := s.Exists(ctx, "8/mapping_part.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "8/mapping_part.xlsx"))
	require.NoError(t, s.Delete(ctx, "8/mapping_part.xlsx"))
	ok, err = s.Exists(ctx, "8/mapping_part.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope.xlsx")
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_RejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../x", "/etc/passwd"} {
		require.Error(t, s.Put(context.Background(), key, bytes.NewBufferString("x")), key)
	}
}
