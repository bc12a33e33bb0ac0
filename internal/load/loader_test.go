package load

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/pgsearch-sync/internal/config"
	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/retry"
)

// fakeCluster is a minimal stand-in for the Elasticsearch bulk endpoint.
type fakeCluster struct {
	mu       sync.Mutex
	indexed  map[string]map[string]json.RawMessage
	requests atomic.Int32
	// failFirst makes the first n bulk requests answer 503
	failFirst int32
	// reject lists document ids answered with a mapping error
	reject map[string]bool
	// serverVersion is reported by the info endpoint, 8.19.0 when empty
	serverVersion string
}

func newFakeCluster(t *testing.T, fc *fakeCluster) *ElasticsearchLoader {
	t.Helper()
	if fc.indexed == nil {
		fc.indexed = map[string]map[string]json.RawMessage{}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/" {
			version := fc.serverVersion
			if version == "" {
				version = "8.19.0"
			}
			_, _ = io.WriteString(w, `{"version":{"number":"`+version+`"},"tagline":"You Know, for Search"}`)
			return
		}
		if r.URL.Path != "/_bulk" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		n := fc.requests.Add(1)
		if n <= fc.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"unavailable"}`)
			return
		}

		type item struct {
			Index  string         `json:"_index"`
			ID     string         `json:"_id"`
			Status int            `json:"status"`
			Error  map[string]any `json:"error,omitempty"`
		}
		var items []map[string]item
		hasErrors := false

		scanner := bufio.NewScanner(r.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for scanner.Scan() {
			var action map[string]map[string]string
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &action))
			meta := action["index"]
			require.True(t, scanner.Scan())
			source := json.RawMessage(bytes.Clone(scanner.Bytes()))

			res := item{Index: meta["_index"], ID: meta["_id"], Status: http.StatusOK}
			if fc.reject[meta["_id"]] {
				hasErrors = true
				res.Status = http.StatusBadRequest
				res.Error = map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse"}
			} else {
				fc.mu.Lock()
				if fc.indexed[meta["_index"]] == nil {
					fc.indexed[meta["_index"]] = map[string]json.RawMessage{}
				}
				fc.indexed[meta["_index"]][meta["_id"]] = source
				fc.mu.Unlock()
			}
			items = append(items, map[string]item{"index": res})
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": hasErrors, "items": items})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewElasticsearchLoader(client, WithRetryPolicy(
		retry.New(IsTransient, retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(2*time.Millisecond), retry.WithMaxRetries(5)),
	))
}

func (fc *fakeCluster) count(index string) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.indexed[index])
}

func TestElasticsearchLoader_UpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fc := &fakeCluster{}
	loader := newFakeCluster(t, fc)

	movie := documents.NewMovie()
	movie.ID = uuid.New()
	movie.Title = "Star Wars"
	docs := []documents.Document{movie}

	require.NoError(t, loader.Upsert(ctx, "movies", docs))
	require.NoError(t, loader.Upsert(ctx, "movies", docs))

	assert.Equal(t, 1, fc.count("movies"))

	var stored map[string]any
	require.NoError(t, json.Unmarshal(fc.indexed["movies"][movie.ID.String()], &stored))
	assert.Equal(t, "Star Wars", stored["title"])
	assert.Contains(t, stored, "directors_names")
}

func TestElasticsearchLoader_EmptyInputMakesNoRequest(t *testing.T) {
	t.Parallel()
	fc := &fakeCluster{}
	loader := newFakeCluster(t, fc)

	require.NoError(t, loader.Upsert(context.Background(), "persons", nil))
	assert.Zero(t, fc.requests.Load())
}

func TestElasticsearchLoader_RetriesUnavailable(t *testing.T) {
	t.Parallel()
	fc := &fakeCluster{failFirst: 2}
	loader := newFakeCluster(t, fc)

	person := documents.Person{ID: uuid.New(), Name: "Ann"}
	require.NoError(t, loader.Upsert(context.Background(), "persons", []documents.Document{person}))

	assert.Equal(t, int32(3), fc.requests.Load())
	assert.Equal(t, 1, fc.count("persons"))
}

func TestElasticsearchLoader_ItemErrors(t *testing.T) {
	t.Parallel()

	ok := documents.Genre{ID: uuid.New(), Name: "Drama"}
	bad := documents.Genre{ID: uuid.New(), Name: "Broken"}
	fc := &fakeCluster{reject: map[string]bool{bad.DocumentID(): true}}
	loader := newFakeCluster(t, fc)

	err := loader.Upsert(context.Background(), "genres", []documents.Document{ok, bad})
	require.Error(t, err)

	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, bad.DocumentID(), itemErr.ID)
	assert.Equal(t, "genres", itemErr.Index)
	assert.Equal(t, "mapper_parsing_exception", itemErr.Type)
	assert.Equal(t, 1, fc.count("genres"))
}

func TestElasticsearchLoader_Ping(t *testing.T) {
	t.Parallel()
	loader := newFakeCluster(t, &fakeCluster{})
	assert.NoError(t, loader.Ping(context.Background()))
}

func TestElasticsearchLoader_CheckServerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{name: "supported", version: "8.19.0"},
		{name: "newer major", version: "9.1.0"},
		{name: "too old", version: "7.17.9", wantErr: true},
		{name: "unparsable", version: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loader := newFakeCluster(t, &fakeCluster{serverVersion: tt.version})

			got, err := loader.CheckServerVersion(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedServer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, got)
		})
	}
}

func TestBulkBody(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("6b1a2d2e-8a55-4c54-9c0e-2c2f7f6c0a11")
	body, err := bulkBody("persons", []documents.Document{documents.Person{ID: id, Name: "Ann"}})
	require.NoError(t, err)

	assert.Equal(t,
		`{"index":{"_id":"6b1a2d2e-8a55-4c54-9c0e-2c2f7f6c0a11","_index":"persons"}}`+"\n"+
			`{"id":"6b1a2d2e-8a55-4c54-9c0e-2c2f7f6c0a11","name":"Ann"}`+"\n",
		string(body))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusServiceUnavailable}))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsTransient(&StatusError{StatusCode: http.StatusBadRequest}))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}))
	assert.False(t, IsTransient(errors.New("the client noticed that the server is not Elasticsearch")))
}
