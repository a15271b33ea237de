package badgerstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/blobtest"
)

func TestStore_ContractInMemory(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	blobtest.Run(t, s)
}

func TestStore_PersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Put(ctx, "u1/20260101/keep.txt", strings.NewReader("persistent"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ok, err := s.Exists(ctx, "u1/20260101/keep.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}
