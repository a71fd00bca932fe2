package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// exercise runs the same contract against any backend.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := "envelopes/01HXACCOUNT/6f1c1d4e-0000-4000-8000-000000000001"

	require.NoError(t, s.Ping(ctx))
	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, key, []byte("ciphertext bytes")))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("ciphertext bytes"), got)

	require.NoError(t, s.Put(ctx, key, []byte("replaced")))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("replaced"), got)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	for _, bad := range []string{"", "/abs", "a/../b", "a//b", `a\b`} {
		require.ErrorIs(t, s.Put(ctx, bad, nil), ErrInvalidKey, bad)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	exercise(t, s)
}

func TestFileStorePermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "envelopes/a/b", []byte("x")))

	info, err := os.Stat(filepath.Join(dir, "blobs", "envelopes", "a", "b.blob"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// fakeS3 is just enough of the S3 REST API for path-style object calls.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[key] = b
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		b, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(b)
	case http.MethodHead:
		if key != f.bucket {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{bucket: "medvault", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:    "medvault",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	exercise(t, s)

	require.Empty(t, fake.objects)
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	require.Error(t, err)
}
