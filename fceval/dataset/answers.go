package dataset

import (
	"encoding/json"
	"fmt"
	"os"

	radix "github.com/armon/go-radix"

	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

// MissingAnswerError reports a sample with no ground truth.
type MissingAnswerError struct {
	ID string
}

func (e *MissingAnswerError) Error() string {
	return fmt.Sprintf("No answer found for function ID: %s", e.ID)
}

// AnswerIndex maps item ids to their ground truth. Ids share category prefixes
// (simple_0, simple_1, ...), so a radix tree keeps prefix walks cheap.
type AnswerIndex struct {
	tree *radix.Tree
}

// NewAnswerIndex creates an empty index.
func NewAnswerIndex() *AnswerIndex {
	return &AnswerIndex{tree: radix.New()}
}

// Insert stores answers under id, replacing any previous entry.
func (x *AnswerIndex) Insert(id string, answers matcher.AnswerSet) {
	x.tree.Insert(id, answers)
}

// Lookup returns the answers for id.
func (x *AnswerIndex) Lookup(id string) (matcher.AnswerSet, bool) {
	v, ok := x.tree.Get(id)
	if !ok {
		return nil, false
	}
	return v.(matcher.AnswerSet), true
}

// Len returns the number of indexed ids.
func (x *AnswerIndex) Len() int { return x.tree.Len() }

// IDsWithPrefix lists indexed ids starting with prefix, in lexical order.
func (x *AnswerIndex) IDsWithPrefix(prefix string) []string {
	var ids []string
	x.tree.WalkPrefix(prefix, func(s string, _ interface{}) bool {
		ids = append(ids, s)
		return false
	})
	return ids
}

type answerJSON struct {
	ID          json.RawMessage   `json:"id"`
	GroundTruth matcher.AnswerSet `json:"ground_truth"`
}

// LoadAnswers reads an answers file into an index.
func LoadAnswers(path string) (*AnswerIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	return ParseAnswers(data)
}

// ParseAnswers decodes an answers document: an array of {id, ground_truth}.
func ParseAnswers(data []byte) (*AnswerIndex, error) {
	var raw []answerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}

	idx := NewAnswerIndex()
	for i, a := range raw {
		id, err := normalizeID(a.ID)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i+1, err)
		}
		idx.Insert(id, a.GroundTruth)
	}
	return idx, nil
}

// normalizeID accepts string or numeric ids.
func normalizeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("missing id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("id must be a string or number, got %s", raw)
}
