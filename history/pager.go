package history

import (
	"context"
	"sync"
)

// PageFetcher is the slice of Client the pager needs. Tests substitute fakes.
type PageFetcher interface {
	FetchPage(ctx context.Context, conversationID, cursor string, limit int) (*Page, error)
}

// Pager accumulates history pages for one conversation in fetch order
// (newest page first) and tracks the continuation cursor. Once the cursor is
// exhausted no further older pages exist for that conversation snapshot.
type Pager struct {
	fetcher        PageFetcher
	conversationID string
	limit          int

	mu       sync.Mutex
	pages    []*Page
	cursor   string
	started  bool
	hasNext  bool
	fetching bool
}

// NewPager creates a pager for one conversation. limit <= 0 uses
// DefaultPageSize.
func NewPager(fetcher PageFetcher, conversationID string, limit int) *Pager {
	return &Pager{
		fetcher:        fetcher,
		conversationID: conversationID,
		limit:          limit,
		hasNext:        true,
	}
}

// FetchNext fetches the next page: the most recent page on first call, then
// successively older ones. It is a no-op when a fetch is already in flight or
// no older page exists.
func (p *Pager) FetchNext(ctx context.Context) error {
	p.mu.Lock()
	if p.fetching || !p.hasNext {
		p.mu.Unlock()
		return nil
	}
	p.fetching = true
	cursor := p.cursor
	p.mu.Unlock()

	page, err := p.fetcher.FetchPage(ctx, p.conversationID, cursor, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetching = false
	if err != nil {
		return err
	}
	p.pages = append(p.pages, page)
	p.started = true
	p.cursor = page.NextCursor
	p.hasNext = page.HasMore && page.NextCursor != ""
	return nil
}

// Pages returns the fetched pages in fetch order (newest page first).
func (p *Pager) Pages() []*Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Page, len(p.pages))
	copy(out, p.pages)
	return out
}

// HasNext reports whether an older page may still exist. True before the
// first fetch.
func (p *Pager) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNext
}

// IsFetching reports whether a page fetch is in flight.
func (p *Pager) IsFetching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetching
}

// Started reports whether at least one page has been fetched.
func (p *Pager) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
