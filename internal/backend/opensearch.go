package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/nightjar-systems/logship/pkg/entry"
)

// OpenSearchConfig holds connection settings for the OpenSearch writer.
// Credentials are passed through to the client unmodified.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// OpenSearchWriter indexes entries into a single OpenSearch index via the
// bulk API.
type OpenSearchWriter struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchWriter creates a writer for the configured index.
func NewOpenSearchWriter(cfg OpenSearchConfig) (*OpenSearchWriter, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("opensearch index is required")
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &OpenSearchWriter{client: client, index: cfg.Index}, nil
}

// Write submits the batch with one bulk request. Empty batches are
// acknowledged without a request. Per-item failures are collected into the
// returned error.
func (w *OpenSearchWriter) Write(ctx context.Context, entries []*entry.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: w.client,
		Index:  w.index,
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []string
	)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			mu.Lock()
			failures = append(failures, fmt.Sprintf("marshal entry: %v", err))
			mu.Unlock()
			continue
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnFailure: func(_ context.Context, _ opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, err.Error())
				} else {
					failures = append(failures, fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if err != nil {
			mu.Lock()
			failures = append(failures, fmt.Sprintf("add to bulk indexer: %v", err))
			mu.Unlock()
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk write: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) > 0 {
		return fmt.Errorf("bulk write failed for %d of %d entries: %s",
			len(failures), len(entries), strings.Join(failures, "; "))
	}
	return nil
}
