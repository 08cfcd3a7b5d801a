package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplesDoc = `[
  {"id": "simple_0", "question": [[{"role": "user", "content": "Weather in Paris?"}]],
   "function": [{"name": "get_weather", "description": "Forecast", "parameters": {"type": "dict",
     "properties": {"city": {"type": "string", "description": "City"}}, "required": ["city"]}}]},
  {"id": "simple_1", "question": [[{"role": "user", "content": "Weather in Rome?"}]],
   "function": [{"name": "get_weather", "description": "Forecast", "parameters": {"type": "dict",
     "properties": {"city": {"type": "string", "description": "City"}}, "required": ["city"]}}]}
]`

const answersDoc = `[
  {"id": "simple_1", "ground_truth": {"get_weather": {"city": ["Rome"]}}},
  {"id": "simple_0", "ground_truth": [{"get_weather": {"city": ["Paris", "paris"]}}]}
]`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_JoinsSamplesAndAnswers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "simple_FC.json", samplesDoc)
	writeFile(t, dir, "simple_FC_answers.json", answersDoc)

	ds, err := Load(context.Background(), dir, dir, "simple")
	require.NoError(t, err)
	require.Len(t, ds.Items, 2)
	assert.Equal(t, "simple", ds.Category)

	first := ds.Items[0]
	assert.Equal(t, "simple_0", first.ID)
	prompt, err := first.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "Weather in Paris?", prompt)
	assert.Equal(t, []string{"get_weather"}, first.Functions.Names())
	require.Len(t, first.RawFunctions, 1)

	require.Len(t, first.Answers, 1)
	params, ok := first.Answers[0].Params("get_weather")
	require.True(t, ok)
	vals, ok := params.Lookup("city")
	require.True(t, ok)
	assert.Equal(t, []any{"Paris", "paris"}, vals)

	second := ds.Items[1]
	require.Len(t, second.Answers, 1, "a bare ground-truth object is one entry")
	assert.Empty(t, ds.Unmatched)
}

func TestLoad_ReportsUnmatchedAnswers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "simple_FC.json", samplesDoc)
	writeFile(t, dir, "simple_FC_answers.json", `[
	  {"id": "simple_0", "ground_truth": {"get_weather": {"city": ["Paris"]}}},
	  {"id": "simple_1", "ground_truth": {"get_weather": {"city": ["Rome"]}}},
	  {"id": "simple_7", "ground_truth": {"get_weather": {"city": ["Oslo"]}}},
	  {"id": "parallel_0", "ground_truth": {"get_weather": {"city": ["Bern"]}}}
	]`)

	ds, err := Load(context.Background(), dir, dir, "simple")
	require.NoError(t, err)
	assert.Len(t, ds.Items, 2)
	assert.Equal(t, []string{"simple_7"}, ds.Unmatched, "ids outside the category prefix are ignored")
}

func TestLoad_MissingAnswer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "simple_FC.json", samplesDoc)
	writeFile(t, dir, "simple_FC_answers.json",
		`[{"id": "simple_0", "ground_truth": {"get_weather": {"city": ["Paris"]}}}]`)

	_, err := Load(context.Background(), dir, dir, "simple")
	require.Error(t, err)

	var missing *MissingAnswerError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "simple_1", missing.ID)
	assert.Equal(t, "No answer found for function ID: simple_1", err.Error())
}

func TestLoad_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(context.Background(), dir, dir, "parallel")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestJoin_Cancelled(t *testing.T) {
	items, err := ParseSamples([]byte(samplesDoc))
	require.NoError(t, err)
	idx, err := ParseAnswers([]byte(answersDoc))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Join(ctx, "simple", items, idx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswerIndex(t *testing.T) {
	idx, err := ParseAnswers([]byte(`[
	  {"id": "parallel_1", "ground_truth": [{"f": {"a": [1]}}]},
	  {"id": "parallel_0", "ground_truth": [{"f": {"a": [2]}}]},
	  {"id": 7, "ground_truth": {"f": {"a": 3}}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, []string{"parallel_0", "parallel_1"}, idx.IDsWithPrefix("parallel_"))

	set, ok := idx.Lookup("7")
	require.True(t, ok, "numeric ids are normalised to strings")
	params, _ := set[0].Params("f")
	vals, _ := params.Lookup("a")
	assert.Equal(t, []any{3.0}, vals)

	_, ok = idx.Lookup("missing")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	_, err := ParseSamples([]byte(`{"not": "an array"}`))
	assert.Error(t, err)

	_, err = ParseSamples([]byte(`[{"question": []}]`))
	assert.ErrorContains(t, err, "missing id")

	_, err = ParseAnswers([]byte(`[{"id": "x", "ground_truth": "nope"}]`))
	assert.Error(t, err)

	_, err = ParseAnswers([]byte(`[{"id": true, "ground_truth": {}}]`))
	assert.Error(t, err)
}

func TestItem_PromptEmpty(t *testing.T) {
	_, err := Item{ID: "x"}.Prompt()
	assert.ErrorIs(t, err, ErrNoPrompt)
}
