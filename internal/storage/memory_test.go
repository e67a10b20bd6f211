package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewMemoryStore(log)
	ctx := context.Background()

	// Load before any save.
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	state := &domain.SessionState{
		ID:            "session-1",
		Generation:    3,
		Phase:         domain.PhaseRecording,
		StatusMessage: "Recording...",
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The store keeps its own copy.
	state.Phase = domain.PhaseIdle

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Phase != domain.PhaseRecording || loaded.Generation != 3 {
		t.Fatalf("unexpected snapshot %+v", loaded)
	}

	// Mutating a loaded copy does not leak back.
	loaded.StatusMessage = "changed"
	again, _ := store.Load(ctx)
	if again.StatusMessage != "Recording..." {
		t.Fatalf("stored snapshot was mutated: %q", again.StatusMessage)
	}

	if store.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", store.Saves())
	}
}

func TestMemoryStoreHistory(t *testing.T) {
	tests := []struct {
		name  string
		cap   int
		saves int
		want  []uint64 // generations retained
	}{
		{"disabled", 0, 3, nil},
		{"under cap", 5, 3, []uint64{1, 2, 3}},
		{"trimmed to cap", 2, 4, []uint64{3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(logger.New(logger.LevelOff, nil), WithHistory(tt.cap))
			for i := 1; i <= tt.saves; i++ {
				store.Save(context.Background(), &domain.SessionState{Generation: uint64(i), StatusMessage: "x"})
			}

			got := store.History()
			if len(got) != len(tt.want) {
				t.Fatalf("history length %d, want %d", len(got), len(tt.want))
			}
			for i, g := range tt.want {
				if got[i].Generation != g {
					t.Errorf("history[%d] generation %d, want %d", i, got[i].Generation, g)
				}
			}
		})
	}
}
