package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseapp/chatkit-go/chatkit"
)

type scriptedFetcher struct {
	pages   map[string]*Page // keyed by cursor, "" = newest
	calls   []string
	failure error
}

func (s *scriptedFetcher) FetchPage(_ context.Context, _, cursor string, _ int) (*Page, error) {
	s.calls = append(s.calls, cursor)
	if s.failure != nil {
		return nil, s.failure
	}
	pg, ok := s.pages[cursor]
	if !ok {
		return &Page{}, nil
	}
	return pg, nil
}

func page(cursorNext string, ids ...string) *Page {
	msgs := make([]chatkit.Message, len(ids))
	for i, id := range ids {
		msgs[i] = chatkit.Message{ID: id, ChatID: "chat-1", CreatedAt: time.Now()}
	}
	return &Page{Messages: msgs, NextCursor: cursorNext, HasMore: cursorNext != ""}
}

func TestPagerWalksCursors(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]*Page{
		"":      page("c1", "m5", "m4"),
		"c1":    page("c2", "m3", "m2"),
		"c2":    page("", "m1"),
	}}
	p := NewPager(f, "chat-1", 2)

	assert.True(t, p.HasNext())
	assert.False(t, p.Started())

	require.NoError(t, p.FetchNext(context.Background()))
	require.NoError(t, p.FetchNext(context.Background()))
	require.NoError(t, p.FetchNext(context.Background()))

	assert.Equal(t, []string{"", "c1", "c2"}, f.calls)
	assert.False(t, p.HasNext(), "exhausted cursor means no older pages")
	assert.True(t, p.Started())

	pages := p.Pages()
	require.Len(t, pages, 3)
	assert.Equal(t, "m5", pages[0].Messages[0].ID, "fetch order is newest page first")
	assert.Equal(t, "m1", pages[2].Messages[0].ID)
}

func TestPagerNoopAfterExhaustion(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]*Page{"": page("", "m1")}}
	p := NewPager(f, "chat-1", 10)

	require.NoError(t, p.FetchNext(context.Background()))
	require.NoError(t, p.FetchNext(context.Background()))
	require.NoError(t, p.FetchNext(context.Background()))

	assert.Len(t, f.calls, 1)
	assert.Len(t, p.Pages(), 1)
}

func TestPagerFetchErrorKeepsCursor(t *testing.T) {
	boom := errors.New("boom")
	f := &scriptedFetcher{failure: boom}
	p := NewPager(f, "chat-1", 10)

	assert.ErrorIs(t, p.FetchNext(context.Background()), boom)
	assert.True(t, p.HasNext(), "a failed fetch can be retried")
	assert.False(t, p.IsFetching())
	assert.Empty(t, p.Pages())

	f.failure = nil
	f.pages = map[string]*Page{"": page("", "m1")}
	require.NoError(t, p.FetchNext(context.Background()))
	assert.Len(t, p.Pages(), 1)
}
