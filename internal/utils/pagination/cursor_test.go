package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcErr "github.com/oggyb/muzz-matching/internal/errors"
)

func ident(s string) string { return s }

func TestByIDWalksWithoutGapsOrOverlap(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	var (
		seen   []string
		cursor string
		pages  int
	)
	for {
		page, next := ByID(items, ident, cursor, 3)
		seen = append(seen, page...)
		pages++
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Equal(t, items, seen)
	assert.Equal(t, 3, pages)
}

func TestByIDUnknownCursorRestarts(t *testing.T) {
	page, next := ByID([]string{"a", "b", "c"}, ident, "zzz", 2)
	assert.Equal(t, []string{"a", "b"}, page)
	assert.Equal(t, "b", next)
}

func TestByIDExactFitHasNoNext(t *testing.T) {
	page, next := ByID([]string{"a", "b"}, ident, "", 2)
	assert.Len(t, page, 2)
	assert.Empty(t, next)

	page, next = ByID([]string{"a", "b"}, ident, "b", 2)
	assert.Empty(t, page)
	assert.Empty(t, next)
}

func TestOffsets(t *testing.T) {
	n, err := ParseOffset("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = ParseOffset("40")
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	_, err = ParseOffset("-1")
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
	_, err = ParseOffset("abc")
	assert.Error(t, err)

	assert.Equal(t, "20", NextOffset(0, 20, 21))
	assert.Empty(t, NextOffset(0, 20, 20))
}
