package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieve/internal/logger"
	"sieve/pkg/filter"
)

const evalMessages = `[
	{"id": 1, "name": "alice", "age": 30},
	{"id": 2, "name": "bob", "age": "unknown"},
	{"id": 3, "name": "alina"}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func decodeOutput(t *testing.T, out *bytes.Buffer) []string {
	t.Helper()
	dec := json.NewDecoder(out)
	dec.UseNumber()
	var matched []map[string]any
	require.NoError(t, dec.Decode(&matched))
	ids := make([]string, 0, len(matched))
	for _, m := range matched {
		ids = append(ids, string(m["id"].(json.Number)))
	}
	return ids
}

func TestRunEvalJSON(t *testing.T) {
	filterPath := writeFile(t, "filter.json",
		`{"type": "string", "field": "name", "operation": "startsWith", "value": "al"}`)

	var out bytes.Buffer
	err := runEval(strings.NewReader(evalMessages), &out, evalOptions{
		filterFile:   filterPath,
		messagesFile: "-",
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, decodeOutput(t, &out))
}

func TestRunEvalYAMLFilterStrictAndLenient(t *testing.T) {
	filterPath := writeFile(t, "filter.yaml", `
type: number
field: age
operation: gte
value: 18
`)
	messagesPath := writeFile(t, "messages.json", evalMessages)

	var out bytes.Buffer
	err := runEval(nil, &out, evalOptions{filterFile: filterPath, messagesFile: messagesPath}, logger.NopLogger())
	require.Error(t, err)
	assert.True(t, filter.IsTypeMismatch(err))
	assert.Zero(t, out.Len())

	err = runEval(nil, &out, evalOptions{
		filterFile:   filterPath,
		messagesFile: messagesPath,
		lenient:      true,
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, decodeOutput(t, &out))
}

func TestRunEvalIgnoreMissing(t *testing.T) {
	filterPath := writeFile(t, "filter.json",
		`{"type": "or", "filters": [{"type": "number", "field": "age", "operation": "lt", "value": 40}]}`)
	messagesPath := writeFile(t, "messages.json", `[{"id": 1, "age": 30}, {"id": 2}]`)

	var out bytes.Buffer
	err := runEval(nil, &out, evalOptions{
		filterFile:    filterPath,
		messagesFile:  messagesPath,
		ignoreMissing: true,
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, decodeOutput(t, &out))
}

func TestRunEvalErrors(t *testing.T) {
	good := writeFile(t, "filter.json", `{"type": "and", "filters": []}`)
	bad := writeFile(t, "bad.json", `{"type": "xor"}`)

	err := runEval(nil, &bytes.Buffer{}, evalOptions{filterFile: bad, messagesFile: "-"}, logger.NopLogger())
	assert.True(t, filter.IsInvalidFilter(err))

	err = runEval(strings.NewReader(`{"not": "an array"}`), &bytes.Buffer{},
		evalOptions{filterFile: good, messagesFile: "-"}, logger.NopLogger())
	assert.ErrorContains(t, err, "failed to decode messages")

	err = runEval(nil, &bytes.Buffer{},
		evalOptions{filterFile: filepath.Join(t.TempDir(), "missing.json"), messagesFile: "-"}, logger.NopLogger())
	assert.ErrorContains(t, err, "failed to read filter")
}
