package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
)

// Record is one uninterpreted item of a page.
type Record = json.RawMessage

// Page is one response of a paginated endpoint. An empty NextCursor ends
// the sequence.
type Page struct {
	Items      []Record
	NextCursor string
	Total      *int
}

type pageBody struct {
	Items      []Record `json:"items"`
	NextCursor *string  `json:"next_cursor"`
	Total      *int     `json:"total"`
}

// PageRequest describes a traversal starting at Cursor.
type PageRequest struct {
	Path       string
	Query      url.Values
	Credential auth.Credential
	Cursor     string
	PageSize   int
}

var (
	// ErrSequenceConsumed is yielded when a page sequence is ranged twice.
	ErrSequenceConsumed = errors.New("page sequence already consumed")
	// ErrCursorCycle is yielded when the server hands out a cursor twice.
	ErrCursorCycle = errors.New("pagination cursor repeated")
)

const (
	CursorParam   = "cursor"
	PageSizeParam = "limit"
)

// Paginator walks cursor-paginated endpoints.
type Paginator struct {
	requester Requester
}

func NewPaginator(r Requester) *Paginator {
	return &Paginator{requester: r}
}

// Pages returns a single-pass sequence issuing one request per pulled page.
// An error is always the last element.
func (p *Paginator) Pages(ctx context.Context, req PageRequest) iter.Seq2[*Page, error] {
	var consumed atomic.Bool
	return func(yield func(*Page, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, ErrSequenceConsumed)
			return
		}
		seen := map[string]struct{}{}
		cursor := req.Cursor
		if cursor != "" {
			seen[cursor] = struct{}{}
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, err := p.fetch(ctx, req, cursor)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			if page.NextCursor == "" {
				return
			}
			if _, dup := seen[page.NextCursor]; dup {
				yield(nil, fmt.Errorf("%w: %q", ErrCursorCycle, page.NextCursor))
				return
			}
			seen[page.NextCursor] = struct{}{}
			cursor = page.NextCursor
		}
	}
}

func (p *Paginator) fetch(ctx context.Context, req PageRequest, cursor string) (*Page, error) {
	query := url.Values{}
	for k, v := range req.Query {
		query[k] = append([]string(nil), v...)
	}
	if cursor != "" {
		query.Set(CursorParam, cursor)
	}
	if req.PageSize > 0 {
		query.Set(PageSizeParam, strconv.Itoa(req.PageSize))
	}

	resp, err := p.requester.Request(ctx, http.MethodGet, req.Path, req.Credential, query, nil)
	if err != nil {
		return nil, err
	}
	var body pageBody
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	page := &Page{Items: body.Items, Total: body.Total}
	if page.Items == nil {
		page.Items = []Record{}
	}
	if body.NextCursor != nil {
		page.NextCursor = *body.NextCursor
	}
	return page, nil
}
