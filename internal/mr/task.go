package mr

import (
	"fmt"
)

// Input is a read-only byte view of known size. It is shared by all workers
// of a run, so implementations must be safe for concurrent Window calls.
type Input interface {
	Size() int64
	// Window returns the bytes in [start, end). The returned slice must not
	// be modified.
	Window(start, end int64) ([]byte, error)
}

// Bytes is an Input backed by an in-memory slice.
type Bytes []byte

func (b Bytes) Size() int64 { return int64(len(b)) }

func (b Bytes) Window(start, end int64) ([]byte, error) {
	if start < 0 || end > int64(len(b)) || start > end {
		return nil, fmt.Errorf("%w: window [%d,%d) out of range %d", ErrInvalidArgument, start, end, len(b))
	}
	return b[start:end], nil
}

// Task describes the work handed to one worker.
type Task struct {
	ID    int
	Chunk Chunk
}

// Stats is what a worker reports back about the chunk it scanned.
type Stats struct {
	Span   Chunk // chunk after boundary alignment
	Bytes  int64
	Tokens int
	Words  int // non-empty normalized words inserted, duplicates included
}

// Boundary selects how chunk edges that fall inside a word are handled.
type Boundary string

const (
	// BoundaryAlign moves every inner chunk edge forward to the next
	// whitespace byte, so no word is ever split between two workers.
	BoundaryAlign Boundary = "align"
	// BoundaryFragment cuts at raw byte offsets. A word straddling an edge
	// is counted as two fragments, and the result depends on worker count.
	BoundaryFragment Boundary = "fragment"
)

func ParseBoundary(s string) (Boundary, error) {
	switch b := Boundary(s); b {
	case BoundaryAlign, BoundaryFragment:
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidArgument, s)
}

// Strategy selects how per-chunk results become the global distinct set.
type Strategy string

const (
	// StrategyLocalMerge gives every worker a private set and unions them
	// once all workers are done.
	StrategyLocalMerge Strategy = "local"
	// StrategyTreeMerge is StrategyLocalMerge with a parallel pairwise
	// reduction instead of a single-threaded union.
	StrategyTreeMerge Strategy = "tree"
	// StrategySharedLock inserts every word into one mutex-protected set.
	StrategySharedLock Strategy = "shared"
	// StrategySharded inserts into a set split into independently locked
	// shards.
	StrategySharded Strategy = "sharded"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyLocalMerge, StrategyTreeMerge, StrategySharedLock, StrategySharded:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown merge strategy %q", ErrInvalidArgument, s)
}
