package persona_test

import (
	"context"
	"errors"
	"testing"

	"github.com/autama/autama/backend/internal/model/persona"
)

func TestMemoryStoreCreateAndFind(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	ctx := context.Background()

	created, err := store.Create(ctx, "Nova", []string{"  i like jazz. ", "", "i own a boat."}, "alice")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", created)
	}
	if len(created.Traits) != 2 || created.Traits[0] != "i like jazz." {
		t.Fatalf("expected normalized traits, got %v", created.Traits)
	}

	got, err := store.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID err: %v", err)
	}
	if got.Creator != "alice" || got.Name != "Nova" {
		t.Fatalf("unexpected persona %+v", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(list) != len(persona.Seed())+1 || list[len(list)-1].ID != created.ID {
		t.Fatalf("expected new persona last in list of %d", len(list))
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	ctx := context.Background()
	id := persona.Seed()[0].ID

	p, _ := store.FindByID(ctx, id)
	p.Traits[0] = "mutated"

	again, _ := store.FindByID(ctx, id)
	if again.Traits[0] == "mutated" {
		t.Fatal("stored persona must be immutable")
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	store := persona.NewMemoryStore(nil)
	ctx := context.Background()

	if _, err := store.FindByID(ctx, "missing"); !errors.Is(err, persona.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Create(ctx, "Empty", []string{" "}, "bob"); !errors.Is(err, persona.ErrTraitsRequired) {
		t.Fatalf("expected ErrTraitsRequired, got %v", err)
	}
}
