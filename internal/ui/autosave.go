package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rakugaki/internal/engine"
	"rakugaki/internal/serializer"
	"rakugaki/internal/store"
)

// Blobs is the part of the store autosave needs.
type Blobs interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Autosave keeps the working project under store.AutosaveKey, sealed with
// an empty password, so the next session resumes where this one stopped.
type Autosave struct {
	blobs Blobs
	ser   *serializer.Serializer
	log   *slog.Logger
}

func NewAutosave(blobs Blobs, ser *serializer.Serializer, log *slog.Logger) *Autosave {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Autosave{blobs: blobs, ser: ser, log: log.With("component", "autosave")}
}

// Save seals d and stores it. It may run off the UI goroutine.
func (a *Autosave) Save(ctx context.Context, d *serializer.Draft) error {
	blob, err := a.ser.Seal(ctx, d, "")
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	if err := a.blobs.Save(ctx, store.AutosaveKey, blob); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	a.log.Debug("working state saved", "bytes", len(blob))
	return nil
}

// Decode opens the autosaved project for e. It returns nil, nil when none
// was kept. It may run off the UI goroutine; apply the result with
// serializer.Apply on it.
func (a *Autosave) Decode(ctx context.Context, e *engine.Engine) (*serializer.Decoded, error) {
	blob, err := a.blobs.Load(ctx, store.AutosaveKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("autosave: %w", err)
	}
	d, err := a.ser.Decode(ctx, e, blob, "")
	if err != nil {
		return nil, fmt.Errorf("autosave: %w", err)
	}
	return d, nil
}

// Clear forgets the working state, e.g. when a new project starts.
func (a *Autosave) Clear(ctx context.Context) error {
	if err := a.blobs.Delete(ctx, store.AutosaveKey); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	return nil
}
