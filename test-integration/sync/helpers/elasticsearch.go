// Package helpers provides fixtures shared by the sync integration tests.
package helpers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeElasticsearch answers the info, ping and bulk endpoints and keeps the
// indexed sources in memory.
type FakeElasticsearch struct {
	server *httptest.Server
	// Version is reported by the info endpoint
	Version string

	mu           sync.Mutex
	indexed      map[string]map[string]json.RawMessage
	bulkRequests int
}

// NewFakeElasticsearch starts a fake cluster. Callers must Close it.
func NewFakeElasticsearch() *FakeElasticsearch {
	fe := &FakeElasticsearch{
		Version: "8.19.0",
		indexed: map[string]map[string]json.RawMessage{},
	}
	fe.server = httptest.NewServer(http.HandlerFunc(fe.handle))
	return fe
}

// URL is the cluster address
func (fe *FakeElasticsearch) URL() string {
	return fe.server.URL
}

// Close stops the server
func (fe *FakeElasticsearch) Close() {
	fe.server.Close()
}

// Count returns the number of documents in index
func (fe *FakeElasticsearch) Count(index string) int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return len(fe.indexed[index])
}

// BulkRequests returns the number of bulk requests received
func (fe *FakeElasticsearch) BulkRequests() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bulkRequests
}

// Document returns the decoded source of a document, nil when absent
func (fe *FakeElasticsearch) Document(index, id string) map[string]any {
	fe.mu.Lock()
	raw, ok := fe.indexed[index][id]
	fe.mu.Unlock()
	if !ok {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc
}

func (fe *FakeElasticsearch) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/":
		_, _ = io.WriteString(w, `{"version":{"number":"`+fe.Version+`"},"tagline":"You Know, for Search"}`)
	case "/_bulk":
		fe.bulk(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type bulkItem struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Status int    `json:"status"`
}

func (fe *FakeElasticsearch) bulk(w http.ResponseWriter, r *http.Request) {
	var items []map[string]bulkItem

	fe.mu.Lock()
	fe.bulkRequests++
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		var action map[string]map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil || !scanner.Scan() {
			fe.mu.Unlock()
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		meta := action["index"]
		if fe.indexed[meta["_index"]] == nil {
			fe.indexed[meta["_index"]] = map[string]json.RawMessage{}
		}
		fe.indexed[meta["_index"]][meta["_id"]] = json.RawMessage(bytes.Clone(scanner.Bytes()))
		items = append(items, map[string]bulkItem{
			"index": {Index: meta["_index"], ID: meta["_id"], Status: http.StatusOK},
		})
	}
	fe.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{"errors": false, "items": items})
}
