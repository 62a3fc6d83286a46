package logging

import (
	"context"
	"log/slog"

	"strmsync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies the reconciliation run a line belongs to.
	FieldRunID = "run_id"
	// FieldPhase names the engine phase (fetching_catalog, syncing_movies, ...).
	FieldPhase = "phase"
	// FieldItemType is movie, series, season, or episode.
	FieldItemType = "item_type"
	// FieldTrigger records what started the run.
	FieldTrigger = "trigger"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact states what a warning means for the library.
	FieldImpact = "impact"
	// FieldProviderID is the catalog provider's integer item identifier.
	FieldProviderID = "provider_id"
	// FieldCategoryID is the provider category identifier.
	FieldCategoryID = "category_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if kind, ok := services.ItemTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItemType, kind))
	}
	if trigger, ok := services.TriggerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrigger, trigger))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
