// Package load writes documents to Elasticsearch with the bulk API.
//
// Every document is indexed under its own identifier, so loading the same
// document twice overwrites it instead of creating a duplicate.
package load

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/retry"
	"github.com/stacklok/pgsearch-sync/internal/versions"
)

// MinServerVersion is the oldest Elasticsearch release the bulk payload is written for
const MinServerVersion = "8.0.0"

// ErrUnsupportedServer is returned by CheckServerVersion for clusters older than MinServerVersion
var ErrUnsupportedServer = errors.New("unsupported elasticsearch version")

// Loader upserts documents into a search index
type Loader interface {
	Upsert(ctx context.Context, index string, docs []documents.Document) error
}

// StatusError is returned when Elasticsearch answers the whole request with an error status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elasticsearch returned status %d: %s", e.StatusCode, e.Body)
}

// ItemError describes one rejected document of a bulk request
type ItemError struct {
	Index  string
	ID     string
	Status int
	Type   string
	Reason string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("document %s in %s rejected with status %d: %s: %s", e.ID, e.Index, e.Status, e.Type, e.Reason)
}

// ElasticsearchLoader implements Loader on the bulk API
type ElasticsearchLoader struct {
	client *elasticsearch.Client
	policy *retry.Policy
}

var _ Loader = (*ElasticsearchLoader)(nil)

// Option configures an ElasticsearchLoader
type Option func(*ElasticsearchLoader)

// WithRetryPolicy wraps every bulk request in policy
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(l *ElasticsearchLoader) {
		l.policy = policy
	}
}

// NewElasticsearchLoader creates a loader on client
func NewElasticsearchLoader(client *elasticsearch.Client, opts ...Option) *ElasticsearchLoader {
	l := &ElasticsearchLoader{client: client}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Upsert indexes docs into index. An empty slice makes no request. When
// some documents are rejected the returned error joins one ItemError per
// rejected document; the accepted ones stay indexed.
func (l *ElasticsearchLoader) Upsert(ctx context.Context, index string, docs []documents.Document) error {
	if len(docs) == 0 {
		return nil
	}

	body, err := bulkBody(index, docs)
	if err != nil {
		return err
	}

	resp, err := retry.Value(ctx, l.policy, "elasticsearch.bulk", func() (*bulkResponse, error) {
		return l.bulk(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("bulk request to %s failed: %w", index, err)
	}

	if !resp.Errors {
		slog.Debug("Indexed documents", "index", index, "count", len(docs))
		return nil
	}

	var errs []error
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			errs = append(errs, &ItemError{
				Index:  result.Index,
				ID:     result.ID,
				Status: result.Status,
				Type:   result.Error.Type,
				Reason: result.Error.Reason,
			})
		}
	}
	slog.Warn("Bulk request partially rejected", "index", index, "documents", len(docs), "rejected", len(errs))
	return errors.Join(errs...)
}

// Ping checks the cluster is reachable
func (l *ElasticsearchLoader) Ping(ctx context.Context) error {
	res, err := l.client.Ping(l.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return &StatusError{StatusCode: res.StatusCode}
	}
	return nil
}

// CheckServerVersion fails when the cluster is older than MinServerVersion
func (l *ElasticsearchLoader) CheckServerVersion(ctx context.Context) (string, error) {
	res, err := l.client.Info(l.client.Info.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return "", &StatusError{StatusCode: res.StatusCode, Body: string(body)}
	}

	var info struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode cluster info: %w", err)
	}

	ok, err := versions.AtLeast(info.Version.Number, MinServerVersion)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedServer, err)
	}
	if !ok {
		return info.Version.Number, fmt.Errorf("%w: %s, %s or newer is required",
			ErrUnsupportedServer, info.Version.Number, MinServerVersion)
	}
	return info.Version.Number, nil
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

func (l *ElasticsearchLoader) bulk(ctx context.Context, body []byte) (*bulkResponse, error) {
	res, err := l.client.Bulk(
		bytes.NewReader(body),
		l.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, statusError(res)
	}

	var out bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	return &out, nil
}

func statusError(res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return &StatusError{StatusCode: res.StatusCode, Body: string(bytes.TrimSpace(msg))}
}

// bulkBody renders docs as NDJSON index actions, one action line and one
// source line per document.
func bulkBody(index string, docs []documents.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": doc.DocumentID()},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode document %s: %w", doc.DocumentID(), err)
		}
	}
	return buf.Bytes(), nil
}

// IsTransient reports whether a bulk failure is worth retrying: transport
// errors and overload or gateway statuses.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNREFUSED)
}
