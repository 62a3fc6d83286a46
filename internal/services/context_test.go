package services_test

import (
	"context"
	"testing"

	"strmsync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithPhase(ctx, "syncing_movies")
	ctx = services.WithItemType(ctx, "movie")
	ctx = services.WithTrigger(ctx, "manual")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "syncing_movies" {
		t.Fatalf("unexpected phase: %v %v", phase, ok)
	}
	if kind, ok := services.ItemTypeFromContext(ctx); !ok || kind != "movie" {
		t.Fatalf("unexpected item type: %v %v", kind, ok)
	}
	if trigger, ok := services.TriggerFromContext(ctx); !ok || trigger != "manual" {
		t.Fatalf("unexpected trigger: %v %v", trigger, ok)
	}
}

func TestPhaseBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhase(ctx, "")
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected no phase value")
	}
}
