package vcs

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Pager yields successive pages of paths. A page shorter than size means
// the source is exhausted.
type Pager interface {
	NextPage(ctx context.Context, size int) ([]string, error)
}

// CollectPaged drains p one page at a time and returns every path it
// yielded, in order. It stops at the first page holding fewer than
// pageSize entries.
func CollectPaged(ctx context.Context, p Pager, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []string
	for {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		page, err := p.NextPage(ctx, pageSize)
		all = append(all, page...)
		if err != nil {
			return all, err
		}
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// linePager pages over newline-separated output, skipping blank lines.
type linePager struct {
	sc *bufio.Scanner
}

func newLinePager(r io.Reader) *linePager {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &linePager{sc: sc}
}

func (l *linePager) NextPage(ctx context.Context, size int) ([]string, error) {
	page := make([]string, 0, min(size, 1024))
	for len(page) < size {
		if !l.sc.Scan() {
			return page, l.sc.Err()
		}
		line := strings.TrimSpace(l.sc.Text())
		if line == "" {
			continue
		}
		page = append(page, line)
	}
	return page, nil
}

// slicePager pages over an in-memory listing.
type slicePager struct {
	items []string
	pos   int
}

func (s *slicePager) NextPage(_ context.Context, size int) ([]string, error) {
	end := min(s.pos+size, len(s.items))
	page := s.items[s.pos:end]
	s.pos = end
	return page, nil
}
