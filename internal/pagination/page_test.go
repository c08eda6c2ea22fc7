package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/echonymous/internal/cursor"
)

type item struct {
	id string
	at time.Time
}

func itemTime(i item) time.Time { return i.at }

func descending(n int) []item {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]item, n)
	for i := range rows {
		rows[i] = item{id: string(rune('a' + i)), at: base.Add(-time.Duration(i) * time.Minute)}
	}
	return rows
}

func TestNew_ExtraRowSetsHasNext(t *testing.T) {
	rows := descending(Fetch(3))

	page := New(rows, 3, itemTime)

	assert.True(t, page.HasNext)
	require.Len(t, page.Content, 3)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, cursor.Encode(rows[2].at), *page.NextCursor)
}

func TestNew_ShortPage(t *testing.T) {
	rows := descending(2)

	page := New(rows, 3, itemTime)

	assert.False(t, page.HasNext)
	assert.Len(t, page.Content, 2)
	assert.Nil(t, page.NextCursor)
}

func TestNew_ExactlyLimit(t *testing.T) {
	page := New(descending(3), 3, itemTime)

	assert.False(t, page.HasNext)
	assert.Len(t, page.Content, 3)
	assert.Nil(t, page.NextCursor)
}

func TestNew_Empty(t *testing.T) {
	page := New[item](nil, 10, itemTime)

	assert.False(t, page.HasNext)
	assert.Nil(t, page.NextCursor)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
}

func TestMap(t *testing.T) {
	page := New(descending(4), 3, itemTime)

	ids := Map(page, func(i item) string { return i.id })

	assert.Equal(t, []string{"a", "b", "c"}, ids.Content)
	assert.Equal(t, page.NextCursor, ids.NextCursor)
	assert.True(t, ids.HasNext)
}
