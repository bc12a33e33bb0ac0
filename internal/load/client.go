package load

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/stacklok/pgsearch-sync/internal/config"
)

// NewClient builds an Elasticsearch client from the elasticsearch config section.
// Client-side retries are disabled; the loader's retry policy owns them.
func NewClient(cfg *config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	password, err := cfg.GetPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to read elasticsearch password: %w", err)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     password,
		DisableRetry: true,
		Transport:    newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}
