// Package broadcast implements the event broadcaster (C7): it fans out
// engine events to every subscribed client, filtered per-client by event
// tag, and isolates slow or disconnected clients from the rest.
//
// The non-blocking dispatch contract is grounded on the donor's
// audio/mixer.PriorityMixer, which never lets its dispatch goroutine block
// on a consumer: the mixer's Enqueue wakes its dispatcher with a buffered,
// select-with-default notify channel rather than an unconditional send.
// Broadcaster pushes that same non-blocking discipline onto its [Client]
// contract: Client.Send itself must never block, so the broadcaster can
// hold its lock for the full fan-out of one event without risking a stall
// on a stuck connection.
package broadcast

import (
	"strings"
	"sync"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/wire"
)

// Client is the broadcaster's view of a subscribed connection. Send must
// return promptly: a back-pressured or disconnected client should return a
// non-nil error rather than block, so the broadcaster can drop it and keep
// serving everyone else.
type Client interface {
	Send(line []byte) error
}

type subscription struct {
	client Client
	tags   map[wire.EventTag]bool
}

// Broadcaster fans out [domain.EngineEvent] values, translated to wire
// events, to every subscriber whose filter includes the event's tag.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*subscription
}

// New constructs an empty [Broadcaster].
func New() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]*subscription)}
}

// Subscribe registers (or replaces) clientID's subscription. An empty tags
// slice subscribes to every tag in [wire.AllEventTags], matching the
// "subscribe" command's default.
func (b *Broadcaster) Subscribe(clientID string, client Client, tags []wire.EventTag) {
	if len(tags) == 0 {
		tags = wire.AllEventTags
	}
	set := make(map[wire.EventTag]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[clientID] = &subscription{client: client, tags: set}
}

// Unsubscribe drops clientID's subscription, if any. Safe to call for an
// unknown or already-removed client.
func (b *Broadcaster) Unsubscribe(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, clientID)
}

// Emit implements [engine.EventSink]. It translates ev to its wire form
// (spec.md §4.5's mapping table) and delivers it to every subscriber whose
// filter includes the resulting tag, in subscriber-map iteration order.
// A subscriber whose Send fails is removed; Emit never blocks on one.
func (b *Broadcaster) Emit(ev domain.EngineEvent) {
	tag, wireEv, ok := translate(ev)
	if !ok {
		return
	}
	line, err := wire.Encode(wireEv)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		if !sub.tags[tag] {
			continue
		}
		if sendErr := sub.client.Send(line); sendErr != nil {
			delete(b.subscribers, id)
		}
	}
}

// translate maps an engine event to its wire tag and payload, per spec.md
// §4.5. ok is false for an [domain.EngineEventKind] with no wire mapping
// (there are currently none, but new engine-internal event kinds should
// fail closed here rather than leak to clients unmapped).
func translate(ev domain.EngineEvent) (wire.EventTag, wire.Event, bool) {
	switch ev.Kind {
	case domain.EventPartialText:
		return wire.EventTagPartial, wire.Event{
			Event:  wire.EventTagPartial,
			Text:   ev.Text,
			Source: string(ev.Source),
		}, true

	case domain.EventSegmentFinalized:
		return wire.EventTagSegment, wire.Event{
			Event:          wire.EventTagSegment,
			Text:           ev.Segment.Text,
			Source:         string(ev.Segment.Source),
			SessionID:      ev.Segment.SessionID,
			SequenceNumber: wire.IntPtr(ev.Segment.SequenceNumber),
		}, true

	case domain.EventLevel:
		return wire.EventTagLevel, wire.Event{
			Event: wire.EventTagLevel,
			Mic:   wire.Float64Ptr(ev.MicLevel),
			Sys:   wire.Float64Ptr(ev.SystemLevel),
		}, true

	case domain.EventStatusChanged:
		return wire.EventTagStatus, wire.Event{
			Event:     wire.EventTagStatus,
			Recording: wire.BoolPtr(ev.Status == domain.EngineRecording),
		}, true

	case domain.EventError:
		return wire.EventTagError, wire.Event{
			Event:     wire.EventTagError,
			Message:   ev.Message,
			Transient: wire.BoolPtr(ev.IsTransient),
		}, true

	case domain.EventModelProcessing:
		return wire.EventTagModelProcessing, wire.Event{
			Event:           wire.EventTagModelProcessing,
			ModelProcessing: wire.BoolPtr(ev.ModelBusy),
		}, true

	case domain.EventTopicsUpdated:
		titles := make([]string, len(ev.Topics))
		for i, t := range ev.Topics {
			titles[i] = t.Title
		}
		return wire.EventTagTopics, wire.Event{
			Event: wire.EventTagTopics,
			Title: strings.Join(titles, ", "),
		}, true

	default:
		return "", wire.Event{}, false
	}
}
