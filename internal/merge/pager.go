package merge

import (
	"context"
	"fmt"
)

// ListFunc fetches one page of a paginated listing.
type ListFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// ForEachPage walks a listing from offset zero, handing every page to visit. It stops
// after the first page holding fewer than pageSize items, which includes an empty page.
// pageSize must be positive.
func ForEachPage[T any](ctx context.Context, pageSize int, list ListFunc[T], visit func(page []T) error) error {
	if pageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := list(ctx, offset, pageSize)
		if err != nil {
			return err
		}
		if err := visit(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

// CollectAll gathers every item of a listing.
func CollectAll[T any](ctx context.Context, pageSize int, list ListFunc[T]) ([]T, error) {
	var all []T
	err := ForEachPage(ctx, pageSize, list, func(page []T) error {
		all = append(all, page...)
		return nil
	})
	return all, err
}
