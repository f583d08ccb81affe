package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBucket is the bucket holding uploaded research files when no
// override is configured.
const DefaultBucket = "pharma_research_files"

// SupabaseOptions configure the Supabase Storage client.
type SupabaseOptions struct {
	// Bucket is the storage bucket name.
	Bucket string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// SupabaseStore implements core.FileStore against the Supabase Storage REST
// API. Objects are addressed as {projectURL}/storage/v1/object/{bucket}/{path}
// authenticated with the service key.
type SupabaseStore struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
}

// NewSupabaseStore constructs a store for the given project URL and service key.
func NewSupabaseStore(projectURL, apiKey string, optFns ...func(o *SupabaseOptions)) *SupabaseStore {
	opts := SupabaseOptions{
		Bucket:     DefaultBucket,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &SupabaseStore{
		baseURL: strings.TrimRight(projectURL, "/"),
		apiKey:  apiKey,
		bucket:  opts.Bucket,
		client:  opts.HTTPClient,
	}
}

// Bucket returns the configured bucket name.
func (s *SupabaseStore) Bucket() string { return s.bucket }

func (s *SupabaseStore) objectURL(objectPath string) string {
	escaped := url.PathEscape(objectPath)
	// PathEscape encodes "/" which must survive as a path separator.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, escaped)
}

func (s *SupabaseStore) authorize(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}

// Download fetches the object bytes at the given path.
func (s *SupabaseStore) Download(ctx context.Context, objectPath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(objectPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("storage download failed: status %d: %s", resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}

// Upload stores bytes under the given path, overwriting any existing object.
func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(objectPath), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	s.authorize(req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage upload failed: status %d: %s", resp.StatusCode, body)
	}

	return nil
}

// listEntry mirrors the subset of the Supabase list response we consume.
type listEntry struct {
	Name string `json:"name"`
}

// List returns object paths beginning with prefix.
func (s *SupabaseStore) List(ctx context.Context, prefix string) ([]string, error) {
	listURL := fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, s.bucket)
	payload, err := json.Marshal(map[string]any{
		"prefix": prefix,
		"limit":  1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage list failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("storage list failed: status %d: %s", resp.StatusCode, body)
	}

	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Name)
	}
	return paths, nil
}
