package mr

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var allStrategies = []Strategy{StrategyLocalMerge, StrategyTreeMerge, StrategySharedLock, StrategySharded}

// referenceCount counts distinct words in one sequential pass.
func referenceCount(data []byte) int {
	set := make(WordSet)
	for _, tok := range bytes.FieldsFunc(data, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) }) {
		if w := Normalize(tok); len(w) > 0 {
			set.Insert(w)
		}
	}
	return set.Len()
}

type fakeRecorder struct {
	mu       sync.Mutex
	chunks   int
	bytes    int64
	statuses []string
	distinct int
}

func (r *fakeRecorder) RecordChunk(bytes int64, _, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks++
	r.bytes += bytes
}

func (r *fakeRecorder) RecordRun(_, status string, distinct int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.distinct = distinct
}

func TestCoordinator_Run(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		workers int
		want    int
	}{
		{name: "distinct words", text: "the quick brown fox", workers: 1, want: 4},
		{name: "case folding", text: "The the THE", workers: 1, want: 1},
		{name: "punctuation stripped", text: "cat, dog. cat!", workers: 1, want: 2},
		{name: "empty input", text: "", workers: 4, want: 0},
		{name: "more workers than bytes", text: "a b", workers: 10, want: 2},
		{name: "repeated across chunks", text: "x y z x y z x y z x y z", workers: 3, want: 3},
	}

	for _, strategy := range allStrategies {
		for _, tt := range tests {
			t.Run(string(strategy)+"/"+tt.name, func(t *testing.T) {
				c := NewCoordinator(zaptest.NewLogger(t), WithStrategy(strategy))
				got, err := c.Run(context.Background(), Bytes(tt.text), tt.workers)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	}
}

func TestCoordinator_StraddlingWord(t *testing.T) {
	// one word twice as long as a chunk, cut in the middle by two workers
	in := Bytes("abcdefgh")

	for _, strategy := range allStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			aligned, err := NewCoordinator(nil, WithStrategy(strategy), WithBoundary(BoundaryAlign)).
				Run(context.Background(), in, 2)
			require.NoError(t, err)
			assert.Equal(t, 1, aligned)

			fragmented, err := NewCoordinator(nil, WithStrategy(strategy), WithBoundary(BoundaryFragment)).
				Run(context.Background(), in, 2)
			require.NoError(t, err)
			assert.Equal(t, 2, fragmented)
		})
	}
}

func TestCoordinator_InvalidArgument(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewCoordinator(nil, WithRecorder(rec))

	for _, workers := range []int{0, -3} {
		_, err := c.Run(context.Background(), Bytes("a b c"), workers)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}

	_, err := c.Run(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewCoordinator(nil, WithStrategy("bogus")).Run(context.Background(), Bytes("a"), 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Zero(t, rec.chunks, "nothing may be scanned for a rejected request")
}

func TestCoordinator_WorkerFailure(t *testing.T) {
	text := Bytes(strings.Repeat("word ", 200))
	in := failingInput{data: text, failAt: text.Size() / 2}

	for _, strategy := range allStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			rec := &fakeRecorder{}
			c := NewCoordinator(zaptest.NewLogger(t), WithStrategy(strategy), WithRecorder(rec))

			got, err := c.Run(context.Background(), in, 4)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrResourceUnavailable)
			assert.Zero(t, got)
			assert.Equal(t, []string{"error"}, rec.statuses)
		})
	}
}

func TestCoordinator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := NewCoordinator(nil).Run(ctx, Bytes("a b c d"), 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, got)
}

func TestCoordinator_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	in := Bytes("alpha beta gamma delta alpha")

	got, err := NewCoordinator(nil, WithRecorder(rec)).Run(context.Background(), in, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	assert.Equal(t, 3, rec.chunks)
	assert.Equal(t, in.Size(), rec.bytes, "aligned spans must still cover the input exactly")
	assert.Equal(t, []string{"success"}, rec.statuses)
	assert.Equal(t, 4, rec.distinct)
}

type memoryFault struct{ addr uintptr }

func (memoryFault) Error() string   { return "unexpected fault address" }
func (memoryFault) RuntimeError()   {}
func (f memoryFault) Addr() uintptr { return f.addr }

func TestFaultError(t *testing.T) {
	err := faultError(3, memoryFault{addr: 0xdead})
	assert.ErrorIs(t, err, ErrResourceUnavailable)
	assert.Contains(t, err.Error(), "worker 3")
	assert.Contains(t, err.Error(), "0xdead")

	assert.PanicsWithValue(t, "boom", func() { _ = faultError(0, "boom") })
}

func TestCount(t *testing.T) {
	got, err := Count(context.Background(), Bytes("To be, or not to be: that is the question."), 3)
	require.NoError(t, err)
	assert.Equal(t, 8, got)
}

func TestMerge(t *testing.T) {
	build := func() []WordSet {
		return []WordSet{
			{"a": {}},
			{"b": {}, "c": {}},
			{},
			{"a": {}, "d": {}, "e": {}},
			{"f": {}},
		}
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, words(mergeAll(build())))
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, words(reduceTree(build())))
	assert.Zero(t, mergeAll(nil).Len())
	assert.Zero(t, reduceTree(nil).Len())
}

func TestProperty_CountIndependentOfWorkers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("aligned count matches a sequential pass for any worker count", prop.ForAll(
		func(tokens []string, workers int, strategy Strategy) bool {
			data := []byte(strings.Join(tokens, " "))
			got, err := NewCoordinator(nil, WithStrategy(strategy)).Run(context.Background(), Bytes(data), workers)
			if err != nil {
				t.Logf("Run failed: %v", err)
				return false
			}
			return got == referenceCount(data)
		},
		gen.SliceOf(gen.OneGenOf(gen.AlphaString(), gen.AnyString(), gen.Const("a.b"), gen.Const("\n"))),
		gen.IntRange(1, 64),
		gen.OneConstOf(StrategyLocalMerge, StrategyTreeMerge, StrategySharedLock, StrategySharded),
	))

	properties.Property("a single worker gives the same count under both boundary policies", prop.ForAll(
		func(tokens []string) bool {
			data := Bytes(strings.Join(tokens, " "))
			fragment, err := NewCoordinator(nil, WithBoundary(BoundaryFragment)).Run(context.Background(), data, 1)
			if err != nil {
				return false
			}
			aligned, err := NewCoordinator(nil, WithBoundary(BoundaryAlign)).Run(context.Background(), data, 1)
			return err == nil && fragment == aligned
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
