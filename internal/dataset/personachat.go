// Package dataset loads the PersonaChat dialogue corpus used to train the
// local scorer and to draw personalities.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/autama/autama/backend/internal/nucleus"
)

// PersonaChatURL is the public self-original PersonaChat release.
const PersonaChatURL = "https://s3.amazonaws.com/datasets.huggingface.co/personachat/personachat_self_original.json"

var ErrEmptyDataset = errors.New("dataset contains no dialogs")

// Dataset mirrors the PersonaChat JSON layout.
type Dataset struct {
	Train []Dialog `json:"train"`
	Valid []Dialog `json:"valid"`
}

// Dialog is one persona with its conversation rounds.
type Dialog struct {
	Personality []string    `json:"personality"`
	Utterances  []Utterance `json:"utterances"`
}

// Utterance holds the running history and the reply candidates; the last
// candidate is the gold reply.
type Utterance struct {
	History    []string `json:"history"`
	Candidates []string `json:"candidates"`
}

// Options controls where the corpus comes from and where it is cached.
type Options struct {
	Path      string
	CachePath string
	Client    *http.Client
}

// Load reads the corpus from the cache when present, otherwise from Path
// (an http(s) URL or a local file) and then writes the cache.
func Load(ctx context.Context, opts Options) (*Dataset, error) {
	if opts.CachePath != "" {
		if ds, err := readFile(opts.CachePath); err == nil {
			log.Printf("[dataset] loaded cached corpus from %s (%d dialogs)", opts.CachePath, ds.Len())
			return ds, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[dataset] ignoring unreadable cache %s: %v", opts.CachePath, err)
		}
	}

	source := strings.TrimSpace(opts.Path)
	if source == "" {
		source = PersonaChatURL
	}

	var (
		ds  *Dataset
		err error
	)
	if isURL(source) {
		ds, err = download(ctx, opts.Client, source)
	} else {
		ds, err = readFile(source)
	}
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}

	if opts.CachePath != "" {
		if err := ds.Save(opts.CachePath); err != nil {
			log.Printf("[dataset] failed to write cache %s: %v", opts.CachePath, err)
		}
	}
	log.Printf("[dataset] loaded %d dialogs from %s", ds.Len(), source)
	return ds, nil
}

// Parse decodes PersonaChat JSON.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := sonic.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return &ds, nil
}

// Save writes the corpus as JSON through a temp file.
func (d *Dataset) Save(path string) error {
	data, err := sonic.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return os.Rename(tmp, path)
}

// Len counts dialogs across both splits.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Train) + len(d.Valid)
}

func (d *Dataset) all() []Dialog {
	out := make([]Dialog, 0, d.Len())
	out = append(out, d.Train...)
	return append(out, d.Valid...)
}

// Personalities returns every non-empty trait list, train split first.
func (d *Dataset) Personalities() [][]string {
	var out [][]string
	for _, dialog := range d.all() {
		if len(dialog.Personality) == 0 {
			continue
		}
		out = append(out, append([]string(nil), dialog.Personality...))
	}
	return out
}

// Dialogues flattens each dialog into its final history plus the gold
// reply, the shape the n-gram trainer expects.
func (d *Dataset) Dialogues() []nucleus.Dialogue {
	var out []nucleus.Dialogue
	for _, dialog := range d.all() {
		if len(dialog.Utterances) == 0 {
			continue
		}
		last := dialog.Utterances[len(dialog.Utterances)-1]
		turns := append([]string(nil), last.History...)
		if n := len(last.Candidates); n > 0 {
			turns = append(turns, last.Candidates[n-1])
		}
		turns = cleanTurns(turns)
		if len(turns) == 0 {
			continue
		}
		out = append(out, nucleus.Dialogue{
			Persona: append([]string(nil), dialog.Personality...),
			Turns:   turns,
		})
	}
	return out
}

// Corpus returns every trait and turn, the input for building a vocabulary.
func (d *Dataset) Corpus() []string {
	var corpus []string
	for _, dialogue := range d.Dialogues() {
		corpus = append(corpus, dialogue.Persona...)
		corpus = append(corpus, dialogue.Turns...)
	}
	return corpus
}

// PersonaChat marks dialog boundaries with this placeholder.
const silenceMarker = "__ SILENCE __"

func cleanTurns(turns []string) []string {
	out := turns[:0]
	for _, turn := range turns {
		turn = strings.TrimSpace(turn)
		if turn == "" || turn == silenceMarker {
			continue
		}
		out = append(out, turn)
	}
	return out
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func readFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func download(ctx context.Context, client *http.Client, url string) (*Dataset, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset request: %w", err)
	}

	log.Printf("[dataset] downloading %s", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download dataset: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset body: %w", err)
	}
	return Parse(data)
}
