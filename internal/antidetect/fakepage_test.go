// internal/antidetect/fakepage_test.go
package antidetect

import (
	"context"
	"sync"
	"time"
)

// fakePage is a scripted browser.Page.
type fakePage struct {
	mu sync.Mutex

	title           string
	html            string
	blocked         bool
	clearAfterPolls int
	clearOnClick    bool

	polls       int
	clicked     bool
	clickLabels []string
	moves       int
	clicks      int
	scrolls     int
	scrollLimit int
	scrollErr   error
	width       int
	height      int
	interactive bool
	evaluations int
}

func (p *fakePage) Navigate(context.Context, string) error { return nil }

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *fakePage) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if p.clearAfterPolls > 0 && p.polls >= p.clearAfterPolls {
		p.blocked = false
	}
	if p.blocked {
		return "Just a moment...", nil
	}
	return p.title, nil
}

func (p *fakePage) Exists(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked, nil
}

func (p *fakePage) WaitReady(context.Context, string, time.Duration) error { return nil }

func (p *fakePage) Evaluate(_ context.Context, _ string, res interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evaluations++
	if b, ok := res.(*bool); ok {
		*b = p.interactive
	}
	return nil
}

func (p *fakePage) MouseMove(context.Context, float64, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves++
	return nil
}

func (p *fakePage) MouseClick(context.Context, float64, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks++
	return nil
}

func (p *fakePage) Scroll(context.Context, int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scrollErr != nil {
		return false, p.scrollErr
	}
	p.scrolls++
	return p.scrollLimit > 0 && p.scrolls >= p.scrollLimit, nil
}

func (p *fakePage) ClickText(_ context.Context, labels []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = true
	p.clickLabels = labels
	if p.clearOnClick {
		p.blocked = false
	}
	return true, nil
}

func (p *fakePage) Viewport() (int, int) { return p.width, p.height }

// recordingSleeper returns instantly and remembers requested durations.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.waits {
		total += d
	}
	return total
}
