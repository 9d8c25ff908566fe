package opensearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
)

// New creates a client and verifies that the cluster answers.
func New(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if err := Healthcheck(client)(ctx); err != nil {
		return nil, err
	}

	return client, nil
}

// Healthcheck returns a readiness probe.
func Healthcheck(client *opensearch.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := client.Info(
			client.Info.WithContext(ctx),
			client.Info.WithErrorTrace(),
		)
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("status %d", res.StatusCode))
		}
		return nil
	}
}

// EnsureIndex creates index with the given JSON mapping when it does not exist yet.
func EnsureIndex(ctx context.Context, client *opensearch.Client, index, mapping string) error {
	exists, err := client.Indices.Exists([]string{index}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Join(ErrIndexSetupFailed, err)
	}
	_, _ = io.Copy(io.Discard, exists.Body)
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return errors.Join(ErrIndexSetupFailed, fmt.Errorf("index %q exists check: status %d", index, exists.StatusCode))
	}

	res, err := client.Indices.Create(index,
		client.Indices.Create.WithBody(strings.NewReader(mapping)),
		client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return errors.Join(ErrIndexSetupFailed, err)
	}
	defer res.Body.Close()

	// A concurrent creator wins the race with 400 resource_already_exists_exception.
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		return errors.Join(ErrIndexSetupFailed, fmt.Errorf("create index %q: status %d: %s", index, res.StatusCode, body))
	}
	return nil
}
