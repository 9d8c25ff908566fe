// Package searchstore indexes tenant audit events in OpenSearch so auditors
// can query bypassed and denied access.
package searchstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/dmitrymomot/casekit/pkg/audit"
	osearch "github.com/dmitrymomot/casekit/pkg/opensearch"
)

// Mapping is the index mapping for audit events.
const Mapping = `{
  "mappings": {
    "properties": {
      "id":                {"type": "keyword"},
      "organization_code": {"type": "keyword"},
      "source":            {"type": "keyword"},
      "user_id":           {"type": "keyword"},
      "decision":          {"type": "keyword"},
      "reason":            {"type": "keyword"},
      "bypass":            {"type": "keyword"},
      "phase":             {"type": "keyword"},
      "error":             {"type": "text"},
      "method":            {"type": "keyword"},
      "path":              {"type": "keyword"},
      "ip":                {"type": "ip", "ignore_malformed": true},
      "request_id":        {"type": "keyword"},
      "elapsed_ns":        {"type": "long"},
      "hash":              {"type": "keyword"},
      "created_at":        {"type": "date"}
    }
  }
}`

// ErrBulkRejected is returned when OpenSearch accepted the request but failed some items.
var ErrBulkRejected = errors.New("searchstore: bulk request had item errors")

// Storage implements audit.Storage with the _bulk API.
type Storage struct {
	client *opensearch.Client
	index  string
}

// New creates a storage indexing into index.
func New(client *opensearch.Client, index string) *Storage {
	if client == nil {
		panic("searchstore: client cannot be nil")
	}
	return &Storage{client: client, index: index}
}

// EnsureIndex creates the audit index with Mapping if missing.
func (s *Storage) EnsureIndex(ctx context.Context) error {
	return osearch.EnsureIndex(ctx, s.client, s.index, Mapping)
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

func (s *Storage) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	body, err := encodeBulk(s.index, events)
	if err != nil {
		return err
	}

	res, err := s.client.Bulk(bytes.NewReader(body),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return errors.Join(audit.ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return errors.Join(audit.ErrStorageNotAvailable, fmt.Errorf("bulk status %d: %s", res.StatusCode, msg))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("searchstore: decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	var failed int
	var first string
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil {
				failed++
				if first == "" {
					first = result.Error.Type + ": " + result.Error.Reason
				}
			}
		}
	}
	return fmt.Errorf("%w: %d of %d failed, first: %s", ErrBulkRejected, failed, len(events), first)
}

// encodeBulk renders events as newline-delimited index actions.
func encodeBulk(index string, events []audit.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: index, ID: e.ID}}); err != nil {
			return nil, err
		}
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
