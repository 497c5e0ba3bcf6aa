package filter

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "sieve/pkg/errors"
)

func sampleMessages() []Message {
	return []Message{
		{"id": "m1", "name": "alice", "age": 30, "active": true, "createdAt": "2024-03-01T10:00:00Z"},
		{"id": "m2", "name": "bob", "age": 17, "active": false, "createdAt": "2023-11-20T08:30:00Z"},
		{"id": "m3", "name": "alina", "age": 45, "active": true, "createdAt": "2024-01-01T00:00:00Z"},
		{"id": "m4", "name": "carol", "age": 30, "active": false, "createdAt": "2022-06-15T12:00:00Z"},
	}
}

func ids(messages []Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m["id"].(string))
	}
	return out
}

func TestMessagesPreservesOrder(t *testing.T) {
	got, err := Messages(sampleMessages(), String("name", OpStartsWith, "al"))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m3"}, ids(got))
}

func TestMessagesKeepsDuplicates(t *testing.T) {
	m := Message{"id": "dup", "age": 50}
	got, err := Messages([]Message{m, m}, Number("age", OpGte, 50))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMessagesSingleInput(t *testing.T) {
	filters := []Filter{
		String("name", OpEq, "alice"),
		String("name", OpEq, "nobody"),
		And(),
		Or(),
	}
	for _, f := range filters {
		got, err := Messages(sampleMessages()[:1], f)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 1)
	}
}

func TestMessagesIdempotent(t *testing.T) {
	f := And(Boolean("active", OpEq, true), Date("createdAt", OpAfter, "2023-12-31"))

	once, err := Messages(sampleMessages(), f)
	require.NoError(t, err)
	twice, err := Messages(once, f)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"m1", "m3"}, ids(once))
}

func TestMessagesCombinatorLaws(t *testing.T) {
	messages := sampleMessages()
	a := Number("age", OpEq, 30)
	b := Boolean("active", OpEq, true)

	onlyA, err := Messages(messages, a)
	require.NoError(t, err)
	onlyB, err := Messages(messages, b)
	require.NoError(t, err)

	and, err := Messages(messages, And(a, b))
	require.NoError(t, err)
	or, err := Messages(messages, Or(a, b))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m4"}, ids(onlyA))
	assert.Equal(t, []string{"m1", "m3"}, ids(onlyB))
	assert.Equal(t, []string{"m1"}, ids(and))
	assert.Equal(t, []string{"m1", "m3", "m4"}, ids(or))

	all, err := Messages(messages, And())
	require.NoError(t, err)
	assert.Equal(t, messages, all)

	none, err := Messages(messages, Or())
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestMessagesStrictAbort(t *testing.T) {
	messages := []Message{{"name": "a"}, {"age": 5}}
	f := Number("age", OpGt, 1)

	got, err := Messages(messages, f)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, IsTypeMismatch(err))

	var appErr *apperrors.Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "age", appErr.Details["field"])
	assert.Equal(t, "number", appErr.Details["expected"])
	assert.Equal(t, "number", appErr.Details["filter_type"])
	assert.Equal(t, "undefined", appErr.Details["value"])
	assert.Equal(t, 0, appErr.Details["message_index"])

	got, err = Messages(messages, f, Strict(false), WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)
	assert.Equal(t, []Message{{"age": 5}}, got)

	got, err = Messages(messages, f, IgnoreMissingFields())
	require.NoError(t, err)
	assert.Equal(t, []Message{{"age": 5}}, got)
}

func TestMessagesUnknownOperation(t *testing.T) {
	f := String("name", "regexMatch", "^a")

	_, err := Messages(sampleMessages(), f)
	require.Error(t, err)
	assert.True(t, IsUnknownOperation(err))

	var appErr *apperrors.Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "regexMatch", appErr.Details["operation"])
	assert.Equal(t, "string", appErr.Details["filter_type"])

	core, logs := observer.New(zapcore.WarnLevel)
	got, err := Messages(sampleMessages(), f, Lenient(), WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, len(sampleMessages()), logs.Len())
}

func TestMessagesLenientNestedStructuralError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	got, err := Messages(sampleMessages(), And(String("name", OpEq, "alice"), nil),
		Lenient(), WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, logs.FilterMessage("Message excluded after filter failure").Len())
}

func TestMessagesNilFilter(t *testing.T) {
	_, err := Messages(sampleMessages(), nil, Lenient())
	assert.True(t, IsInvalidFilter(err))

	_, err = Messages(sampleMessages(), (*AndFilter)(nil), Lenient())
	assert.True(t, IsInvalidFilter(err))
}

func TestMessagesNilLeafInsideTree(t *testing.T) {
	var s *StringFilter

	_, err := Messages([]Message{{"a": "x"}}, And(s))
	require.Error(t, err)
	assert.True(t, IsInvalidFilter(err))

	core, logs := observer.New(zapcore.WarnLevel)
	got, err := Messages([]Message{{"a": "x"}, {"a": "y"}}, And(s), Lenient(), WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, logs.Len())
}

func TestEvaluatorSharedAcrossGoroutines(t *testing.T) {
	core, _ := observer.New(zapcore.WarnLevel)
	e := NewEvaluator(Lenient(), WithLogger(zap.New(core).Sugar()))
	f := Or(
		And(Boolean("active", OpEq, true), Date("createdAt", OpAfter, "2023-12-31")),
		Number("age", OpLt, 18),
		String("name", "regexMatch", "^c"),
	)

	var messages []Message
	for i := 0; i < 50; i++ {
		messages = append(messages, sampleMessages()...)
	}

	want, err := e.Messages(messages, f)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	const workers = 8
	chunk := (len(messages) + workers - 1) / workers
	results := make([][]Message, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := min(w*chunk, len(messages))
		hi := min(lo+chunk, len(messages))
		wg.Add(1)
		go func(w int, part []Message) {
			defer wg.Done()
			results[w], errs[w] = e.Messages(part, f)
		}(w, messages[lo:hi])
	}
	wg.Wait()

	got := make([]Message, 0, len(want))
	for w := range results {
		require.NoError(t, errs[w])
		got = append(got, results[w]...)
	}
	assert.Equal(t, want, got)
}

func TestMessagesDoesNotMutateInput(t *testing.T) {
	messages := sampleMessages()
	snapshot := sampleMessages()

	_, err := Messages(messages, Date("createdAt", OpBefore, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, snapshot, messages)
}
