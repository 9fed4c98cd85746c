package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Channel delivers a rendered message to one destination (chat bot, email...).
// A channel that is not configured reports Enabled() == false and is skipped.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg Message) error
}

type ChannelResult struct {
	Channel string
	Err     error
}

type Report struct {
	NotificationID string
	Results        []ChannelResult
}

func (r Report) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if res.Err != nil {
			names = append(names, res.Channel)
		}
	}
	return names
}

func (r Report) OK() bool {
	return len(r.Failed()) == 0
}

type Dispatcher struct {
	renderer *Renderer
	channels []Channel
	observe  func(channel string, err error)
}

func NewDispatcher(renderer *Renderer, channels ...Channel) *Dispatcher {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &Dispatcher{
		renderer: renderer,
		channels: channels,
	}
}

// OnResult registers a hook called once per channel attempt (metrics).
func (d *Dispatcher) OnResult(fn func(channel string, err error)) {
	d.observe = fn
}

// Enabled lists the names of configured channels.
func (d *Dispatcher) Enabled() []string {
	var names []string
	for _, ch := range d.channels {
		if ch.Enabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Dispatch sends n to every enabled channel in parallel and waits for all of
// them to settle. It never fails; per-channel outcomes are in the Report.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) Report {
	return d.DispatchTo(ctx, n, nil)
}

// DispatchTo restricts delivery to the named channels. A nil list means all.
func (d *Dispatcher) DispatchTo(ctx context.Context, n Notification, names []string) Report {
	msg := d.renderer.Render(n)
	report := Report{NotificationID: n.ID}

	targets := d.targets(names)
	if len(targets) == 0 {
		log.Printf("⚠️ [NOTIFY] No channel configured, dropping %s (%s)", n.ID, n.Type)
		return report
	}

	results := make([]ChannelResult, len(targets))
	var wg sync.WaitGroup
	for i, ch := range targets {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = ChannelResult{Channel: ch.Name(), Err: d.send(ctx, ch, msg)}
		}(i, ch)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			log.Printf("❌ [NOTIFY] %s failed for %s (%s): %v", res.Channel, n.ID, n.Type, res.Err)
		} else {
			log.Printf("✅ [NOTIFY] %s delivered %s (%s)", res.Channel, n.ID, n.Type)
		}
		if d.observe != nil {
			d.observe(res.Channel, res.Err)
		}
	}

	report.Results = results
	return report
}

func (d *Dispatcher) targets(names []string) []Channel {
	var wanted map[string]bool
	if names != nil {
		wanted = make(map[string]bool, len(names))
		for _, name := range names {
			wanted[name] = true
		}
	}

	var out []Channel
	for _, ch := range d.channels {
		if !ch.Enabled() {
			continue
		}
		if wanted != nil && !wanted[ch.Name()] {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in channel %s: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, msg)
}
