package nucleus

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

const checkpointVersion = 1

type checkpoint struct {
	Version int
	Words   []string
	Uni     []int
	Total   int
	Bi      map[int]map[int]int
	Tri     map[uint64]map[int]int
}

// SaveCheckpoint writes the tokenizer vocabulary and the n-gram counts to
// path as gzip-compressed gob.
func SaveCheckpoint(path string, tok *WordTokenizer, model *NGram) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}

	zw := gzip.NewWriter(f)
	ck := checkpoint{
		Version: checkpointVersion,
		Words:   tok.Words(),
		Uni:     model.uni,
		Total:   model.total,
		Bi:      model.bi,
		Tri:     model.tri,
	}
	if err := gob.NewEncoder(zw).Encode(&ck); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("gzip close failed: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpoint restores a tokenizer and scorer saved by SaveCheckpoint.
func LoadCheckpoint(path string) (*WordTokenizer, *NGram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer zr.Close()

	var ck checkpoint
	if err := gob.NewDecoder(zr).Decode(&ck); err != nil {
		return nil, nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if ck.Version != checkpointVersion {
		return nil, nil, fmt.Errorf("unsupported checkpoint version %d", ck.Version)
	}

	tok := NewWordTokenizer(ck.Words)
	model := NewNGram(tok.VocabSize(), tok.Specials())
	if len(ck.Uni) != model.vocab {
		return nil, nil, fmt.Errorf("checkpoint vocabulary mismatch: %d counts for %d tokens", len(ck.Uni), model.vocab)
	}
	model.uni = ck.Uni
	model.total = ck.Total
	if ck.Bi != nil {
		model.bi = ck.Bi
	}
	if ck.Tri != nil {
		model.tri = ck.Tri
	}
	for b, next := range model.bi {
		for _, c := range next {
			model.biN[b] += c
		}
	}
	for k, next := range model.tri {
		for _, c := range next {
			model.triN[k] += c
		}
	}
	return tok, model, nil
}
