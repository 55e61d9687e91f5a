package s3storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

const docID = "7b0e9a52-3c1d-4f1e-9b7a-2d8c6f4e1a00"

// fakeS3 keeps PUT bodies in memory and answers HEAD for them. Bodies may
// arrive aws-chunked over plain http, so tests look for the payload inside.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(config.ArchiveConfig{
		Endpoint:   strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:  "minioadmin",
		SecretKey:  "minioadmin",
		Region:     "us-east-1",
		Bucket:     "gestao-fiscal",
		PresignTTL: 5 * time.Minute,
	})
	require.NoError(t, err)
	return s, fake
}

func TestObjectKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "capturas/"+docID+".json", ObjectKey(docID))
}

func TestArchivePayload(t *testing.T) {
	t.Parallel()

	s, fake := newTestStorage(t)
	raw := []byte(`{"tipo_documento":"NFSe"}`)

	require.NoError(t, s.ArchivePayload(context.Background(), docID, raw))

	path := "/gestao-fiscal/" + ObjectKey(docID)
	assert.Contains(t, string(fake.objects[path]), string(raw))
	assert.Equal(t, "application/json", fake.types[path])
}

func TestPresignPayloadURL(t *testing.T) {
	t.Parallel()

	s, _ := newTestStorage(t)
	ctx := context.Background()

	_, _, err := s.PresignPayloadURL(ctx, docID)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.ArchivePayload(ctx, docID, []byte(`{}`)))

	u, ttl, err := s.PresignPayloadURL(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
	assert.Contains(t, u, ObjectKey(docID))
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=300")
}
