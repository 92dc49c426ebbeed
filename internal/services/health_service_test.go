package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"keyserve/internal/store"
)

func TestHealthService(t *testing.T) {
	records := store.NewRecordStore(store.NewMemoryKV())
	svc := NewHealthService(records, nil)
	ctx := context.Background()

	live := svc.Liveness(ctx)
	assert.Equal(t, "ok", live.Status)
	assert.NotEmpty(t, live.Version)

	ready, ok := svc.Readiness(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Store)
}
