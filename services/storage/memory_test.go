package storagesvc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("http://files.test")

	_, err := s.PresignedURL(ctx, "a.pdf", time.Minute)
	assert.Error(t, err)

	require.NoError(t, s.Put(ctx, "a.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))
	obj, ok := s.Get("a.pdf")
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF"), obj.Data)
	assert.Equal(t, "application/pdf", obj.ContentType)

	u, err := s.PresignedURL(ctx, "a.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://files.test/a.pdf?expires="))

	assert.Error(t, s.Put(ctx, "short", strings.NewReader("ab"), 4, ""))

	require.NoError(t, s.Delete(ctx, "a.pdf"))
	assert.Equal(t, 0, s.Len())
}
