package mr

import (
	"context"
	"fmt"
)

// checkEvery is how many bytes a worker scans between context checks.
const checkEvery = 64 << 10

// Worker scans one chunk of a shared Input and feeds the normalized words it
// finds into a sink.
type Worker struct {
	ID       int
	Input    Input
	Boundary Boundary
}

// Do tokenizes the chunk of task on whitespace, normalizes every token and
// inserts the non-empty results into sink. It only fails when the input
// cannot be read or ctx is done.
func (wrk *Worker) Do(ctx context.Context, task Task, sink Inserter) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	span, err := wrk.span(task.Chunk)
	if err != nil {
		return Stats{}, fmt.Errorf("worker %d: align %s: %w", wrk.ID, task.Chunk, err)
	}
	stats := Stats{Span: span, Bytes: span.Len()}
	if span.Empty() {
		return stats, nil
	}

	data, err := wrk.Input.Window(span.Start, span.End)
	if err != nil {
		return Stats{}, fmt.Errorf("worker %d: read %s: %w", wrk.ID, span, err)
	}

	var (
		word []byte
		n    = len(data)
		next = checkEvery
	)
	for i := 0; i < n; {
		for i < n && isSpace(data[i]) {
			i++
		}
		if i == n {
			break
		}
		j := i
		for j < n && !isSpace(data[j]) {
			j++
		}

		stats.Tokens++
		word = AppendNormalized(word[:0], data[i:j])
		if len(word) > 0 {
			sink.Insert(word)
			stats.Words++
		}

		i = j
		if i >= next {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
			next = i + checkEvery
		}
	}
	return stats, nil
}

// span returns the byte range the worker actually scans for c.
func (wrk *Worker) span(c Chunk) (Chunk, error) {
	if wrk.Boundary == BoundaryFragment {
		return c, nil
	}
	start, err := alignForward(wrk.Input, c.Start)
	if err != nil {
		return Chunk{}, err
	}
	end, err := alignForward(wrk.Input, c.End)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Start: start, End: end}, nil
}
