package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidBatchSize is returned when a batch limit below 1 is requested.
var ErrInvalidBatchSize = errors.New("batch size must be >= 1")

// Batched splits items into contiguous groups of at most limit elements and
// calls fn on each group in order, concatenating the results positionally.
//
// An empty item slice returns immediately without calling fn. When the items
// fit in a single group, fn is called exactly once with the full slice.
// Dispatch is sequential; the first failing group aborts the remainder and
// no partial results are returned.
func Batched[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, []T) ([]R, error)) ([]R, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidBatchSize, limit)
	}
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, 0, len(items))
	for start := 0; start < len(items); start += limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+limit, len(items))
		out, err := fn(ctx, items[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch [%d:%d]: %w", start, end, err)
		}
		results = append(results, out...)
	}
	return results, nil
}
