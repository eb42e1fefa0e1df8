package pagination

import (
	"fmt"
	"strconv"

	svcErr "github.com/oggyb/muzz-matching/internal/errors"
)

// ByID returns up to limit items following the item whose id is cursor.
//
// Behavior:
//   - Empty or unknown cursor → first page.
//   - next is the id of the last returned item while more items remain,
//     "" once the list is exhausted.
//
// The cursor is re-resolved against items on every call, so a list that
// changed between requests is paged from wherever the cursor now sits.
func ByID[T any](items []T, id func(T) string, cursor string, limit int) (page []T, next string) {
	if limit <= 0 {
		return []T{}, ""
	}
	start := 0
	if cursor != "" {
		for i, it := range items {
			if id(it) == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(items) {
		return []T{}, ""
	}
	end := min(start+limit, len(items))
	page = items[start:end]
	if end < len(items) {
		next = id(page[len(page)-1])
	}
	return page, next
}

// ParseOffset decodes an integer offset cursor. Empty → 0.
func ParseOffset(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid pagination token %q", svcErr.ErrInvalidArgument, cursor)
	}
	return n, nil
}

// NextOffset returns the cursor after a page of limit items starting at
// offset, or "" when total items are exhausted.
func NextOffset(offset, limit int, total int64) string {
	if int64(offset+limit) >= total {
		return ""
	}
	return strconv.Itoa(offset + limit)
}
