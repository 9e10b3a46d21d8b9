package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctxengine/ctxengine/pkg/model"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	ctx := context.Background()
	catalog, err := OpenCatalog(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func summaryFor(id, model_ string, firstMessage string, at time.Time) model.SessionSummary {
	return model.SessionSummary{
		SessionID:    id,
		ModelID:      model_,
		MessageCount: 1,
		FirstMessage: firstMessage,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func TestUpsertThenQueryFindsEntry(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)

	if err := catalog.Upsert(ctx, summaryFor("s1", "fake-model", "hello there", time.Now())); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	result, err := catalog.Query(ctx, model.QueryOptions{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Total != 1 || len(result.Summaries) != 1 {
		t.Fatalf("result = %+v, want one entry", result)
	}
	if result.Summaries[0].SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", result.Summaries[0].SessionID)
	}
}

func TestUpsertTwiceUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)

	if err := catalog.Upsert(ctx, summaryFor("s1", "model-a", "first", time.Now())); err != nil {
		t.Fatalf("Upsert (1): %v", err)
	}
	if err := catalog.Upsert(ctx, summaryFor("s1", "model-b", "first", time.Now())); err != nil {
		t.Fatalf("Upsert (2): %v", err)
	}

	result, err := catalog.Query(ctx, model.QueryOptions{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1 (upsert should not duplicate rows)", result.Total)
	}
	if result.Summaries[0].ModelID != "model-b" {
		t.Errorf("ModelID = %q, want model-b (second upsert should win)", result.Summaries[0].ModelID)
	}
}

func TestQueryFiltersByModelID(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	now := time.Now()

	if err := catalog.Upsert(ctx, summaryFor("s1", "model-a", "a", now)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := catalog.Upsert(ctx, summaryFor("s2", "model-b", "b", now)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	result, err := catalog.Query(ctx, model.QueryOptions{ModelID: "model-a"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Total != 1 || result.Summaries[0].SessionID != "s1" {
		t.Errorf("result = %+v, want only s1", result)
	}
}

func TestQueryFiltersBySearchTerm(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	now := time.Now()

	if err := catalog.Upsert(ctx, summaryFor("s1", "m", "tell me about rockets", now)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := catalog.Upsert(ctx, summaryFor("s2", "m", "fix this bug", now)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	result, err := catalog.Query(ctx, model.QueryOptions{SearchTerm: "rocket"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Total != 1 || result.Summaries[0].SessionID != "s1" {
		t.Errorf("result = %+v, want only s1", result)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)

	if err := catalog.Upsert(ctx, summaryFor("s1", "m", "x", time.Now())); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := catalog.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	result, err := catalog.Query(ctx, model.QueryOptions{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, want 0 after delete", result.Total)
	}
}

func TestQueryRespectsLimitAndDefaultsWhenUnset(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		if err := catalog.Upsert(ctx, summaryFor(id, "m", id, now)); err != nil {
			t.Fatalf("Upsert(%s): %v", id, err)
		}
	}

	result, err := catalog.Query(ctx, model.QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Summaries) != 2 {
		t.Errorf("got %d summaries, want 2 (Limit)", len(result.Summaries))
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3 (Total ignores Limit)", result.Total)
	}
}
