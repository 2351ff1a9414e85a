package nucleus_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/autama/autama/backend/internal/nucleus"
)

type scorerFunc func(input []int) ([]float64, error)

func (f scorerFunc) NextLogits(_ context.Context, input []int) ([]float64, error) {
	return f(input)
}

const testVocab = 300

var specials = nucleus.NewWordTokenizer(nil).Specials()

// preferEOS puts almost all mass on <eos> but leaves the letters reachable.
func preferEOS(input []int) ([]float64, error) {
	logits := make([]float64, testVocab)
	for i := range logits {
		logits[i] = -20
	}
	logits['a'] = -2
	logits['b'] = -3
	logits[specials.EOS] = 5
	return logits, nil
}

// onlyEOS makes <eos> the single reachable token.
func onlyEOS(input []int) ([]float64, error) {
	logits := make([]float64, testVocab)
	for i := range logits {
		logits[i] = math.Inf(-1)
	}
	logits[specials.EOS] = 0
	return logits, nil
}

// neverEOS depends on the input length so greedy output is not constant.
func neverEOS(input []int) ([]float64, error) {
	logits := make([]float64, testVocab)
	for i := range logits {
		logits[i] = -10
	}
	for _, id := range specials.IDs() {
		logits[id] = math.Inf(-1)
	}
	logits['a'+len(input)%5] = 3
	logits['x'] = 2.5
	return logits, nil
}

func sampleWith(t *testing.T, scorer nucleus.Scorer, cfg nucleus.SamplingConfig, seed int64) []int {
	t.Helper()
	s := nucleus.NewSampler(scorer, specials, seed)
	history := []nucleus.Utterance{{Role: nucleus.RoleUser, Tokens: []int{'h', 'i'}}}
	out, err := s.Sample(context.Background(), nucleus.Persona{Traits: [][]int{{'c', 'a', 't'}}}, history, cfg)
	if err != nil {
		t.Fatalf("Sample err: %v", err)
	}
	return out
}

func TestSamplerRespectsMinLength(t *testing.T) {
	for _, greedy := range []bool{true, false} {
		cfg := nucleus.DefaultSamplingConfig()
		cfg.NoSample = greedy
		cfg.TopP = 0
		cfg.MinLength = 4
		cfg.MaxLength = 10

		out := sampleWith(t, scorerFunc(preferEOS), cfg, 7)
		if len(out) != cfg.MinLength {
			t.Fatalf("greedy=%v: expected exactly %d tokens, got %d", greedy, cfg.MinLength, len(out))
		}
		for _, id := range out {
			if specials.IsSpecial(id) {
				t.Fatalf("greedy=%v: control token %d in output", greedy, id)
			}
		}
	}
}

func TestSamplerStopsWhenOnlyEOSIsReachable(t *testing.T) {
	cfg := nucleus.DefaultSamplingConfig()
	cfg.MinLength = 5
	cfg.MaxLength = 10

	out := sampleWith(t, scorerFunc(onlyEOS), cfg, 1)
	if len(out) != 0 {
		t.Fatalf("expected empty reply when <eos> has probability 1, got %v", out)
	}
}

func TestSamplerStopsAtMaxLength(t *testing.T) {
	for _, greedy := range []bool{true, false} {
		cfg := nucleus.DefaultSamplingConfig()
		cfg.NoSample = greedy
		cfg.MaxLength = 7

		out := sampleWith(t, scorerFunc(neverEOS), cfg, 3)
		if len(out) != cfg.MaxLength {
			t.Fatalf("greedy=%v: expected %d tokens, got %d", greedy, cfg.MaxLength, len(out))
		}
	}
}

func TestSamplerGreedyIsDeterministic(t *testing.T) {
	cfg := nucleus.DefaultSamplingConfig()
	cfg.NoSample = true
	cfg.MaxLength = 12

	first := sampleWith(t, scorerFunc(neverEOS), cfg, 11)
	second := sampleWith(t, scorerFunc(neverEOS), cfg, 99)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("greedy decoding differs across seeds: %v vs %v", first, second)
	}
	for _, id := range first {
		if id == 'x' {
			t.Fatalf("greedy decoding picked a lower-scored token: %v", first)
		}
	}
}

func TestSamplerSeededSamplingIsReproducible(t *testing.T) {
	cfg := nucleus.DefaultSamplingConfig()
	cfg.TopK = 0
	cfg.TopP = 0
	cfg.Temperature = 5
	cfg.MaxLength = 16

	first := sampleWith(t, scorerFunc(neverEOS), cfg, 42)
	second := sampleWith(t, scorerFunc(neverEOS), cfg, 42)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different samples: %v vs %v", first, second)
	}
}

func TestSamplerUnfilteredSamplingCoversDistribution(t *testing.T) {
	uniform := func(input []int) ([]float64, error) {
		logits := make([]float64, testVocab)
		for _, id := range specials.IDs() {
			logits[id] = math.Inf(-1)
		}
		return logits, nil
	}
	cfg := nucleus.DefaultSamplingConfig()
	cfg.TopK = 0
	cfg.TopP = 0
	cfg.MaxLength = 20

	out := sampleWith(t, scorerFunc(uniform), cfg, 5)
	distinct := make(map[int]bool)
	for _, id := range out {
		distinct[id] = true
	}
	if len(distinct) < 5 {
		t.Fatalf("expected draws spread over the vocabulary, got %v", out)
	}
}

func TestSamplerWrapsScorerFailure(t *testing.T) {
	failing := scorerFunc(func([]int) ([]float64, error) { return nil, errors.New("backend down") })
	s := nucleus.NewSampler(failing, specials, 1)

	_, err := s.Sample(context.Background(), nucleus.Persona{}, nil, nucleus.DefaultSamplingConfig())
	if !errors.Is(err, nucleus.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestSamplerHonorsCancelledContext(t *testing.T) {
	s := nucleus.NewSampler(scorerFunc(neverEOS), specials, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Sample(ctx, nucleus.Persona{}, nil, nucleus.DefaultSamplingConfig())
	if !errors.Is(err, context.Canceled) || !errors.Is(err, nucleus.ErrModelUnavailable) {
		t.Fatalf("expected cancellation wrapped as model error, got %v", err)
	}
}

func TestFilterLogitsTopK(t *testing.T) {
	got := nucleus.FilterLogits([]float64{1, 3, 2, 0}, 2, 0)
	if !math.IsInf(got[0], -1) || !math.IsInf(got[3], -1) {
		t.Fatalf("expected low logits removed, got %v", got)
	}
	if got[1] != 3 || got[2] != 2 {
		t.Fatalf("expected top logits kept, got %v", got)
	}
}

func TestFilterLogitsTopP(t *testing.T) {
	logits := []float64{math.Log(0.2), math.Log(0.5), math.Log(0.3)}
	got := nucleus.FilterLogits(logits, 0, 0.6)

	if math.IsInf(got[1], -1) || math.IsInf(got[2], -1) {
		t.Fatalf("expected the two most likely tokens kept, got %v", got)
	}
	if !math.IsInf(got[0], -1) {
		t.Fatalf("expected the tail token removed, got %v", got)
	}

	single := nucleus.FilterLogits(logits, 0, 0.01)
	kept := 0
	for _, v := range single {
		if !math.IsInf(v, -1) {
			kept++
		}
	}
	if kept != 1 {
		t.Fatalf("tiny top_p must still keep one token, kept %d", kept)
	}
}

func TestBuildInputLayout(t *testing.T) {
	persona := nucleus.Persona{Traits: [][]int{{1, 2}, {3}}}
	history := []nucleus.Utterance{
		{Role: nucleus.RoleUser, Tokens: []int{10}},
		{Role: nucleus.RoleModel, Tokens: []int{11, 12}},
		{Role: nucleus.RoleUser, Tokens: []int{13}},
	}
	got := nucleus.BuildInput(persona, history, []int{20}, specials)
	want := []int{
		specials.BOS, 1, 2, 3,
		specials.Speaker1, 10,
		specials.Speaker2, 11, 12,
		specials.Speaker1, 13,
		specials.Speaker2, 20,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected input layout:\n got %v\nwant %v", got, want)
	}
}
