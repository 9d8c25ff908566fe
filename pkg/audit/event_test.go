package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/audit"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	base := audit.Event{Source: "url", UserID: audit.Anonymous, Phase: "denied", CreatedAt: time.Now()}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(e *audit.Event)
	}{
		{"missing phase", func(e *audit.Event) { e.Phase = "" }},
		{"missing user", func(e *audit.Event) { e.UserID = "" }},
		{"missing source", func(e *audit.Event) { e.Source = "" }},
		{"missing timestamp", func(e *audit.Event) { e.CreatedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := base
			tt.mutate(&e)
			assert.ErrorIs(t, e.Validate(), audit.ErrEventValidation)
		})
	}
}

func TestSHA256Hasher(t *testing.T) {
	t.Parallel()

	h := audit.NewSHA256Hasher()
	e := audit.Event{ID: "1", Source: "url", UserID: "u", Phase: "cleaned", CreatedAt: time.Unix(100, 0)}

	first := h.Hash(e)
	assert.Equal(t, first, h.Hash(e))

	e.Decision = "allow"
	assert.NotEqual(t, first, h.Hash(e))
}

func TestLogStorage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	storage := audit.NewLogStorage(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := storage.StoreBatch(context.Background(), []audit.Event{{
		ID:               "e1",
		OrganizationCode: "MOH",
		Source:           "url",
		UserID:           "u1",
		Decision:         "allow",
		Bypass:           "superuser_bypass",
		Phase:            "cleaned",
	}})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	group, ok := entry["audit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MOH", group["organization_code"])
	assert.Equal(t, "superuser_bypass", group["bypass"])
}
