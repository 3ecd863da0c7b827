package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_PutGetDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	info, err := s.Put(ctx, "files/a.txt", strings.NewReader("hello"), PutObjectOptions{Size: 5, ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.NotEmpty(t, info.ETag)

	rc, got, err := s.Get(ctx, "files/a.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/plain", got.ContentType)

	require.NoError(t, s.Delete(ctx, "files/a.txt"))
	assert.False(t, s.Has("files/a.txt"))

	_, _, err = s.Get(ctx, "files/a.txt")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestMemoryStorage_SizeMismatch(t *testing.T) {
	s := NewMemory()

	_, err := s.Put(context.Background(), "k", strings.NewReader("abc"), PutObjectOptions{Size: 10})

	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStorage_UnknownSize(t *testing.T) {
	s := NewMemory()

	info, err := s.Put(context.Background(), "k", strings.NewReader("abc"), PutObjectOptions{Size: -1})

	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)
}
