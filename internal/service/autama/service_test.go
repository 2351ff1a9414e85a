package autama_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
	"github.com/autama/autama/backend/internal/service/autama"
	"github.com/autama/autama/backend/internal/service/bacon"
)

type countingGenerator struct {
	calls  int
	failAt int
}

func (g *countingGenerator) GenerateFullPersonality(context.Context) (bacon.FullPersonality, error) {
	g.calls++
	if g.failAt > 0 && g.calls == g.failAt {
		return bacon.FullPersonality{}, errors.New("generator exhausted")
	}
	return bacon.FullPersonality{
		Name:   fmt.Sprintf("Autama %d", g.calls),
		Traits: []string{fmt.Sprintf("i am number %d.", g.calls)},
	}, nil
}

func TestMassProduceCreatesSequentially(t *testing.T) {
	store := persona.NewMemoryStore(nil)
	gen := &countingGenerator{}
	svc := autama.NewService(store, gen)

	created, err := svc.MassProduce(context.Background(), autama.DefaultAmount, "admin")
	if err != nil {
		t.Fatalf("MassProduce err: %v", err)
	}
	if len(created) != 2 || gen.calls != 2 {
		t.Fatalf("expected 2 personas from 2 calls, got %d/%d", len(created), gen.calls)
	}
	for i, p := range created {
		if p.Creator != "admin" || p.Name != fmt.Sprintf("Autama %d", i+1) {
			t.Fatalf("unexpected persona %+v", p)
		}
	}

	list, _ := store.List(context.Background())
	if len(list) != 2 {
		t.Fatalf("expected 2 stored personas, got %d", len(list))
	}
}

func TestMassProduceStopsAtFirstFailure(t *testing.T) {
	store := persona.NewMemoryStore(nil)
	svc := autama.NewService(store, &countingGenerator{failAt: 3})

	created, err := svc.MassProduce(context.Background(), 5, "admin")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(created) != 2 {
		t.Fatalf("expected the 2 personas made before the failure, got %d", len(created))
	}
	list, _ := store.List(context.Background())
	if len(list) != 2 {
		t.Fatalf("store should keep earlier personas, got %d", len(list))
	}
}

func TestMassProduceRejectsNonPositiveAmount(t *testing.T) {
	svc := autama.NewService(persona.NewMemoryStore(nil), &countingGenerator{})
	if _, err := svc.MassProduce(context.Background(), 0, "admin"); !errors.Is(err, autama.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMassProduceRejectsAmountAboveLimit(t *testing.T) {
	store := persona.NewMemoryStore(nil)
	gen := &countingGenerator{}
	svc := autama.NewService(store, gen)
	ctx := context.Background()

	for _, amount := range []int{math.MaxInt, autama.MaxAmount + 1} {
		if _, err := svc.MassProduce(ctx, amount, "admin"); !errors.Is(err, autama.ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if gen.calls != 0 {
		t.Fatalf("rejected runs must not generate, got %d calls", gen.calls)
	}

	svc.SetMaxAmount(3)
	if _, err := svc.MassProduce(ctx, 4, "admin"); !errors.Is(err, autama.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount above custom limit, got %v", err)
	}
	created, err := svc.MassProduce(ctx, 3, "admin")
	if err != nil || len(created) != 3 {
		t.Fatalf("expected 3 personas at the limit, got %d err=%v", len(created), err)
	}
}

func TestRegisterRejectsTraitsTheEngineCannotEncode(t *testing.T) {
	store := persona.NewMemoryStore(nil)
	svc := autama.NewService(store, &countingGenerator{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "Bell", []string{"i like tea.", "i ring\x07 bells."}, "alice")
	if !errors.Is(err, nucleus.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
	if list, _ := store.List(ctx); len(list) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(list))
	}

	p, err := svc.Register(ctx, "Bell", []string{"i ring\tbells."}, "alice")
	if err != nil {
		t.Fatalf("tab is allowed in traits, got %v", err)
	}
	if _, err := nucleus.EncodePersona(p.ID, p.Traits, nucleus.NewWordTokenizer(nil)); err != nil {
		t.Fatalf("stored persona should encode, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := autama.NewService(persona.NewMemoryStore(nil), &countingGenerator{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, " ", []string{"i am here."}, "bob"); !errors.Is(err, autama.ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := svc.Register(ctx, "Ghost", nil, "bob"); !errors.Is(err, persona.ErrTraitsRequired) {
		t.Fatalf("expected ErrTraitsRequired, got %v", err)
	}

	p, err := svc.Register(ctx, "  Ivy ", []string{"i like rain."}, "bob")
	if err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if p.Name != "Ivy" || p.Creator != "bob" {
		t.Fatalf("unexpected persona %+v", p)
	}
}
