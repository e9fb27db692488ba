package mr

import (
	"fmt"
)

// Chunk is a half-open byte range [Start, End) of the input.
type Chunk struct {
	Start int64
	End   int64
}

func (c Chunk) Len() int64 { return c.End - c.Start }

func (c Chunk) Empty() bool { return c.End <= c.Start }

func (c Chunk) String() string { return fmt.Sprintf("[%d,%d)", c.Start, c.End) }

// MaxWorkers bounds the worker count. Every worker costs a goroutine and a
// word set before a single byte is scanned.
const MaxWorkers = 1 << 16

// Plan splits [0, total) into workers contiguous chunks. Every chunk but the
// last has total/workers bytes; the last one absorbs the remainder.
func Plan(total int64, workers int) ([]Chunk, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", ErrInvalidArgument, workers)
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: worker count %d exceeds %d", ErrInvalidArgument, workers, MaxWorkers)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: negative input length %d", ErrInvalidArgument, total)
	}

	base := total / int64(workers)
	chunks := make([]Chunk, workers)
	for i := range workers {
		start := int64(i) * base
		end := start + base
		if i == workers-1 {
			end = total
		}
		chunks[i] = Chunk{Start: start, End: end}
	}
	return chunks, nil
}

// alignStep is how many bytes are requested per Window call while searching
// for the next whitespace byte.
const alignStep = 4 << 10

// alignForward moves boundary p to the first whitespace byte at or after p.
// 0 and the input size are fixed points. The result is monotonic in p, so
// aligning both ends of every planned chunk keeps the chunks a partition.
func alignForward(in Input, p int64) (int64, error) {
	size := in.Size()
	if p <= 0 || p >= size {
		return p, nil
	}
	for p < size {
		end := min(p+alignStep, size)
		window, err := in.Window(p, end)
		if err != nil {
			return 0, err
		}
		for i, b := range window {
			if isSpace(b) {
				return p + int64(i), nil
			}
		}
		p = end
	}
	return size, nil
}
