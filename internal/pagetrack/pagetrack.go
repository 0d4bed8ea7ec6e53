// Package pagetrack ties a page's lifecycle (mount, scroll, unmount) and its
// interactive elements to an interaction event emitter.
package pagetrack

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/tracker"
)

// MinTimeSpent is the shortest visit reported as time spent.
const MinTimeSpent = 5 * time.Second

// ScrollThresholds are the depth percentages reported at most once per visit.
var ScrollThresholds = []int{25, 50, 75, 100}

// Emitter delivers events without blocking the caller. *tracker.Client
// satisfies it.
type Emitter interface {
	Fire(ctx context.Context, kind tracker.EventKind, page, element string, metadata map[string]any)
}

// PageTracker follows one page. Visits are counted once per PageTracker; each
// Mount starts a new scroll and time measurement.
type PageTracker struct {
	emitter Emitter
	page    string
	now     func() time.Time

	mu         sync.Mutex
	visited    bool
	mounted    bool
	mountedAt  time.Time
	highWater  float64
	nextMarker int
}

// Option configures a PageTracker.
type Option func(*PageTracker)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *PageTracker) {
		p.now = now
	}
}

// New creates a tracker for page.
func New(emitter Emitter, page string, opts ...Option) *PageTracker {
	p := &PageTracker{
		emitter: emitter,
		page:    page,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Page returns the tracked page name.
func (p *PageTracker) Page() string {
	return p.page
}

// Mount starts a visit. The first Mount emits page_visit.
func (p *PageTracker) Mount(ctx context.Context) {
	p.mu.Lock()
	first := !p.visited
	p.visited = true
	p.mounted = true
	p.mountedAt = p.now()
	p.highWater = 0
	p.nextMarker = 0
	p.mu.Unlock()

	if first {
		p.fire(ctx, tracker.PageVisit(nil))
	}
}

// Unmount ends the visit and emits time_spent when the visit lasted at least
// MinTimeSpent. It reports the elapsed time; calling it on an unmounted
// tracker is a no-op.
func (p *PageTracker) Unmount(ctx context.Context) time.Duration {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return 0
	}
	p.mounted = false
	elapsed := p.now().Sub(p.mountedAt)
	p.mu.Unlock()

	if elapsed >= MinTimeSpent {
		p.fire(ctx, tracker.TimeSpent(int(elapsed/time.Second)))
	}
	return elapsed
}

// Depth returns the scroll depth percentage for a viewport, clamped to
// [0, 100]. ok is false when the page cannot scroll.
func Depth(scrollY, scrollHeight, innerHeight float64) (depth float64, ok bool) {
	scrollable := scrollHeight - innerHeight
	if scrollable <= 0 || math.IsNaN(scrollable) || math.IsNaN(scrollY) {
		return 0, false
	}
	depth = scrollY / scrollable * 100
	return math.Max(0, math.Min(100, depth)), true
}

// Scroll records a scroll position and emits scroll_depth for every
// threshold newly crossed, in ascending order. It returns the emitted
// thresholds.
func (p *PageTracker) Scroll(ctx context.Context, scrollY, scrollHeight, innerHeight float64) []int {
	depth, ok := Depth(scrollY, scrollHeight, innerHeight)
	if !ok {
		return nil
	}

	p.mu.Lock()
	if depth > p.highWater {
		p.highWater = depth
	}
	var crossed []int
	for p.nextMarker < len(ScrollThresholds) && p.highWater >= float64(ScrollThresholds[p.nextMarker]) {
		crossed = append(crossed, ScrollThresholds[p.nextMarker])
		p.nextMarker++
	}
	p.mu.Unlock()

	for _, d := range crossed {
		p.fire(ctx, tracker.ScrollDepth(d))
	}
	return crossed
}

// HighWater returns the deepest scroll depth seen in the current visit.
func (p *PageTracker) HighWater() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highWater
}

// Click records a button click on this page.
func (p *PageTracker) Click(ctx context.Context, button string, metadata map[string]any) {
	p.fire(ctx, tracker.ButtonClick(button, metadata))
}

// Link records a followed link on this page.
func (p *PageTracker) Link(ctx context.Context, link, href string) {
	p.fire(ctx, tracker.LinkClick(link, href))
}

// Form records a form submission on this page.
func (p *PageTracker) Form(ctx context.Context, form string, metadata map[string]any) {
	p.fire(ctx, tracker.FormSubmission(form, metadata))
}

// ProjectView records a project card view on this page.
func (p *PageTracker) ProjectView(ctx context.Context, project string) {
	p.fire(ctx, tracker.ProjectView(project))
}

// SkillView records a skill view on this page.
func (p *PageTracker) SkillView(ctx context.Context, skill string) {
	p.fire(ctx, tracker.SkillView(skill))
}

// SocialClick records a click through to a social profile.
func (p *PageTracker) SocialClick(ctx context.Context, platform, url string) {
	p.fire(ctx, tracker.SocialMediaClick(platform, url))
}

// ContactForm records a contact form step.
func (p *PageTracker) ContactForm(ctx context.Context, action string, metadata map[string]any) {
	p.fire(ctx, tracker.ContactFormInteraction(action, metadata))
}

func (p *PageTracker) fire(ctx context.Context, e tracker.Event) {
	p.emitter.Fire(ctx, e.Kind, p.page, e.Element, e.Metadata)
}
