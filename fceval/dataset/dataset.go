// Package dataset loads evaluation samples and joins them with their ground truth.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

// ErrNoPrompt is returned when an item has no question turn to send.
var ErrNoPrompt = errors.New("item has no question")

// Message is one chat turn of a question.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Item is one test case: the question, the catalog offered to the model and the
// ground truth it is graded against.
type Item struct {
	ID           string
	Question     [][]Message
	Functions    catalog.Catalog
	RawFunctions []json.RawMessage
	Answers      matcher.AnswerSet
}

// Prompt returns the first turn's content.
func (it Item) Prompt() (string, error) {
	if len(it.Question) == 0 || len(it.Question[0]) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoPrompt, it.ID)
	}
	return it.Question[0][0].Content, nil
}

// Dataset holds the items of one category in file order.
type Dataset struct {
	Category string
	Items    []Item
	// Unmatched lists answer ids under the category prefix that no sample uses.
	Unmatched []string
}

// SamplesPath returns <dir>/<category>_FC.json.
func SamplesPath(dir, category string) string {
	return filepath.Join(dir, category+"_FC.json")
}

// AnswersPath returns <dir>/<category>_FC_answers.json.
func AnswersPath(dir, category string) string {
	return filepath.Join(dir, category+"_FC_answers.json")
}

// Load reads the samples and answers of category and joins them by id. Every sample
// must have an answer.
func Load(ctx context.Context, samplesDir, answersDir, category string) (*Dataset, error) {
	items, err := LoadSamples(SamplesPath(samplesDir, category))
	if err != nil {
		return nil, err
	}
	answers, err := LoadAnswers(AnswersPath(answersDir, category))
	if err != nil {
		return nil, err
	}
	return Join(ctx, category, items, answers)
}

// Join attaches answers to items and records answers left without a sample.
func Join(ctx context.Context, category string, items []Item, answers *AnswerIndex) (*Dataset, error) {
	ds := &Dataset{Category: category, Items: make([]Item, 0, len(items))}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.ID] = struct{}{}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, ok := answers.Lookup(it.ID)
		if !ok {
			return nil, &MissingAnswerError{ID: it.ID}
		}
		it.Answers = set
		ds.Items = append(ds.Items, it)
	}
	for _, id := range answers.IDsWithPrefix(category + "_") {
		if _, ok := seen[id]; !ok {
			ds.Unmatched = append(ds.Unmatched, id)
		}
	}
	return ds, nil
}

type sampleJSON struct {
	ID       json.RawMessage   `json:"id"`
	Question [][]Message       `json:"question"`
	Function []json.RawMessage `json:"function"`
}

// LoadSamples reads a samples file.
func LoadSamples(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}
	return ParseSamples(data)
}

// ParseSamples decodes a samples document: an array of {id, question, function}.
func ParseSamples(data []byte) ([]Item, error) {
	var raw []sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for i, s := range raw {
		id, err := normalizeID(s.ID)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i+1, err)
		}

		cat := make(catalog.Catalog, len(s.Function))
		for j, fn := range s.Function {
			if err := json.Unmarshal(fn, &cat[j]); err != nil {
				return nil, fmt.Errorf("sample %s function %d: %w", id, j+1, err)
			}
		}

		items = append(items, Item{
			ID:           id,
			Question:     s.Question,
			Functions:    cat,
			RawFunctions: s.Function,
		})
	}
	return items, nil
}
