package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- InMemoryStore Tests --------------------

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	err := store.Upload(ctx, "reports/q1.csv", []byte("a,b\n1,2\n"), "text/csv")
	require.NoError(t, err)

	data, err := store.Download(ctx, "reports/q1.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	// Mutating the returned slice must not affect the stored copy.
	data[0] = 'x'
	again, err := store.Download(ctx, "reports/q1.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(again))
}

func TestInMemoryStoreNotFound(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Download(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Upload(ctx, "docs/a.pdf", []byte("a"), ""))
	require.NoError(t, store.Upload(ctx, "docs/b.pdf", []byte("b"), ""))
	require.NoError(t, store.Upload(ctx, "data/c.csv", []byte("c"), ""))

	paths, err := store.List(ctx, "docs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.pdf", "docs/b.pdf"}, paths)
}

// -------------------- SupabaseStore Tests --------------------

func TestSupabaseStoreDownload(t *testing.T) {
	var gotPath, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "service-key", func(o *SupabaseOptions) {
		o.Bucket = "test_bucket"
	})

	data, err := store.Download(context.Background(), "uploads/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
	assert.Equal(t, "/storage/v1/object/test_bucket/uploads/report.pdf", gotPath)
	assert.Equal(t, "service-key", gotAPIKey)
}

func TestSupabaseStoreDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "k")
	_, err := store.Download(context.Background(), "nope.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseStoreList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "uploads/", body["prefix"])
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"name": "uploads/a.csv"},
			{"name": "uploads/b.pdf"},
		})
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "k")
	paths, err := store.List(context.Background(), "uploads/")
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/a.csv", "uploads/b.pdf"}, paths)
}

func TestSupabaseStoreDefaultBucket(t *testing.T) {
	store := NewSupabaseStore("https://example.supabase.co", "k")
	assert.Equal(t, DefaultBucket, store.Bucket())
}
