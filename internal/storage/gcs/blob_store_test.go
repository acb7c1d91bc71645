package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "raw-payloads"})
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/raw-payloads/o")
		assert.Equal(t, "raw/7/batch-1/c-1.json", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), `{"identifier":{}}`)
		assert.Contains(t, string(body), `"source":"crunchbase"`)
		assert.Equal(t, "0", r.URL.Query().Get("ifGenerationMatch"))
		fmt.Fprintln(w, `{"name":"raw/7/batch-1/c-1.json","bucket":"raw-payloads"}`)
	}))

	uri, err := store.PutObject(context.Background(), "/raw/7/batch-1/c-1.json", "application/json",
		bytes.NewBufferString(`{"identifier":{}}`))
	require.NoError(t, err)
	require.Equal(t, "gs://raw-payloads/raw/7/batch-1/c-1.json", uri)
}

func TestPutObjectKeepsExistingObject(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), `"contentType":"application/json"`)
		http.Error(w, `{"error":{"code":412,"message":"conditionNotMet"}}`, http.StatusPreconditionFailed)
	}))

	uri, err := store.PutObject(context.Background(), "raw/7/batch-1/c-1.json", "", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	require.Equal(t, "gs://raw-payloads/raw/7/batch-1/c-1.json", uri)
}

func TestPutObjectSurfacesServerErrors(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))

	_, err := store.PutObject(context.Background(), "raw/x.json", "application/json", bytes.NewBufferString("{}"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{})
	require.Error(t, err)

	store := &BlobStore{}
	for _, path := range []string{"  ", "raw/../secrets.json", "raw//c.json", "raw/./c.json"} {
		_, err = store.PutObject(context.Background(), path, "", bytes.NewReader(nil))
		require.Error(t, err, path)
	}
}
