package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalService_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	svc, err := NewLocalService(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, svc.Root())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalService_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	svc, err := NewLocalService(t.TempDir())
	require.NoError(t, err)

	content := []byte("integration by parts")
	key := NewKey("calculus.PDF")

	n, err := svc.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	_, err = os.Stat(filepath.Join(svc.Root(), key+tmpSuffix))
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	rc, info, err := svc.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(len(content)), info.Size)

	objects, err := svc.ListObjects(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, key, objects[0].Key)

	require.NoError(t, svc.Delete(ctx, key))
	require.NoError(t, svc.Delete(ctx, key))

	_, _, err = svc.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalService_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	svc, err := NewLocalService(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape.txt", "a/b.txt", "..", ""} {
		_, err := svc.Put(ctx, key, strings.NewReader("x"), 1, "")
		assert.Error(t, err, key)

		_, _, err = svc.Open(ctx, key)
		assert.ErrorIs(t, err, ErrObjectNotFound, key)
	}
}

func TestNewKey(t *testing.T) {
	a := NewKey("Lecture 1.DOCX")
	b := NewKey("Lecture 1.DOCX")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".docx"))
	assert.NotContains(t, a, "Lecture")

	assert.False(t, strings.Contains(NewKey("../../etc/passwd"), "/"))
	assert.Len(t, NewKey("weird.ex t"), 36)
}
