// Package dispatch implements the command dispatcher (C8): it accepts a
// decoded [wire.Command] and a client handle, drives the engine or
// broadcaster, and returns exactly one [wire.Response].
//
// It is grounded on the donor's discord.CommandRouter: a mutex-free (here,
// since the command set is fixed at construction and never mutated after)
// map keyed by command name dispatching to a handler function, generalized
// from the donor's open-ended slash-command registry to spec.md §4.6's
// closed five-command set.
package dispatch

import (
	"context"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/wire"
)

// Engine is the narrow view of the recording engine (C6) the dispatcher
// drives.
type Engine interface {
	Start(ctx context.Context, locale, device string, systemAudio bool) (domain.Session, error)
	Stop(ctx context.Context) error
	Status() domain.EngineStatus
	CurrentSession() *domain.Session
	CurrentDevice() string
	IsSystemAudioEnabled() bool
	SegmentCount() int
}

// DeviceLister answers the "devices" command.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]string, error)
}

// Subscriber registers a client's event subscription; [broadcast.Broadcaster]
// implements it.
type Subscriber interface {
	Subscribe(clientID string, client Client, tags []wire.EventTag)
}

// Client is a subscribable connection handle, re-exported from the
// broadcaster's contract so this package does not need to import it just
// for the type.
type Client interface {
	Send(line []byte) error
}

// Config bundles a [Dispatcher]'s dependencies.
type Config struct {
	Engine        Engine
	Devices       DeviceLister
	Subscriber    Subscriber
	DefaultLocale string
}

// Dispatcher implements the closed command set of spec.md §4.6.
type Dispatcher struct {
	engine        Engine
	devices       DeviceLister
	subscriber    Subscriber
	defaultLocale string
	handlers      map[wire.CommandName]func(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response
}

// New constructs a [Dispatcher] from cfg.
func New(cfg Config) *Dispatcher {
	locale := cfg.DefaultLocale
	if locale == "" {
		locale = "en-US"
	}
	d := &Dispatcher{
		engine:        cfg.Engine,
		devices:       cfg.Devices,
		subscriber:    cfg.Subscriber,
		defaultLocale: locale,
	}
	d.handlers = map[wire.CommandName]func(context.Context, string, Client, wire.Command) wire.Response{
		wire.CommandStatus:    d.handleStatus,
		wire.CommandDevices:   d.handleDevices,
		wire.CommandStart:     d.handleStart,
		wire.CommandStop:      d.handleStop,
		wire.CommandSubscribe: d.handleSubscribe,
	}
	return d
}

// Dispatch routes cmd to its handler and returns the single [wire.Response]
// to send back. An unrecognized command name yields {ok:false,error:"bad
// command"} without affecting clientID's connection.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response {
	handler, ok := d.handlers[cmd.Cmd]
	if !ok {
		return wire.Response{OK: false, Error: "bad command"}
	}
	return handler(ctx, clientID, client, cmd)
}

func (d *Dispatcher) handleStatus(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response {
	status := d.engine.Status()
	resp := wire.Response{
		OK:          true,
		Recording:   wire.BoolPtr(status == domain.EngineRecording),
		Status:      string(status),
		Device:      d.engine.CurrentDevice(),
		SystemAudio: wire.BoolPtr(d.engine.IsSystemAudioEnabled()),
		Segments:    wire.IntPtr(d.engine.SegmentCount()),
	}
	if sess := d.engine.CurrentSession(); sess != nil {
		resp.SessionID = sess.ID
	}
	return resp
}

func (d *Dispatcher) handleDevices(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response {
	devices, err := d.devices.ListDevices(ctx)
	if err != nil {
		return wire.Response{OK: false, Error: err.Error()}
	}
	return wire.Response{OK: true, Devices: devices}
}

func (d *Dispatcher) handleStart(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response {
	locale := cmd.Locale
	if locale == "" {
		locale = d.defaultLocale
	}
	systemAudio := cmd.SystemAudio != nil && *cmd.SystemAudio

	sess, err := d.engine.Start(ctx, locale, cmd.Device, systemAudio)
	if err != nil {
		return wire.Response{OK: false, Error: err.Error()}
	}
	return wire.Response{OK: true, SessionID: sess.ID}
}

func (d *Dispatcher) handleStop(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response {
	if err := d.engine.Stop(ctx); err != nil {
		return wire.Response{OK: false, Error: err.Error()}
	}
	return wire.Response{OK: true}
}

func (d *Dispatcher) handleSubscribe(ctx context.Context, clientID string, client Client, cmd wire.Command) wire.Response {
	d.subscriber.Subscribe(clientID, client, cmd.Events)
	return wire.Response{OK: true}
}
