package blobstore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackline/internal/blobstore"
	"trackline/internal/domain"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, "report.pdf", "application/pdf", []byte("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "blob://"))
	assert.True(t, strings.HasSuffix(ref, "/report.pdf"))

	data, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestIdenticalPayloadsShareOneBlob(t *testing.T) {
	s, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := s.Put(ctx, "a.txt", "text/plain", []byte("same"))
	require.NoError(t, err)
	b, err := s.Put(ctx, "b.txt", "text/plain", []byte("same"))
	require.NoError(t, err)

	// names differ, digests match
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.Split(a, "/")[2], strings.Split(b, "/")[2])
}

func TestEmptyPayloadRejected(t *testing.T) {
	s, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "empty", "text/plain", nil)
	var ve domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestMalformedRefs(t *testing.T) {
	s, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var ve domain.ValidationError
	_, err = s.Get(ctx, "http://example.com/a")
	require.ErrorAs(t, err, &ve)
	_, err = s.Get(ctx, "blob://short/a")
	require.ErrorAs(t, err, &ve)

	var nf domain.NotFoundError
	_, err = s.Get(ctx, "blob://"+strings.Repeat("ab", 32)+"/missing")
	require.ErrorAs(t, err, &nf)
}

func TestNameSanitized(t *testing.T) {
	s, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)
	ref, err := s.Put(context.Background(), "../etc/pass wd", "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "/pass_wd"))
}
