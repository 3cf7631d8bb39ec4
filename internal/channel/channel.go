// Package channel defines the contract every platform adapter implements.
//
// An adapter owns the connection to one messaging platform and translates
// between platform-native events and the normalized types in
// internal/message. The platform SDK keeps connection management, polling
// and wire-protocol details; the adapter keeps lifecycle state, the
// allowlist gate and the normalization logic.
//
// # Lifecycle
//
// Adapters move through Stopped → Starting → Connected → Stopped. Errors
// surfaced by the platform after the connection is up are reported through
// the OnError handler and do not change state; only Stop leaves Connected.
//
// # Usage
//
//	adapter := telegram.New(cfg)
//	err := adapter.Start(channel.Handlers{
//	    OnMessage: func(msg message.Inbound) { ... },
//	    OnError:   func(err error) { ... },
//	})
//	...
//	adapter.Send(message.Outbound{ChatID: "123", Content: "hi"})
//	adapter.Stop()
package channel

import (
	"github.com/keepmind9/chanbridge/internal/message"
)

// State is the lifecycle state of an adapter.
type State string

const (
	StateStopped   State = "stopped"
	StateStarting  State = "starting"
	StateConnected State = "connected"
	// StateErrored marks a start that failed; a connected adapter that
	// sees platform errors stays Connected and reports through OnError.
	StateErrored State = "errored"
)

// Handlers is the host-supplied callback set. Any field may be left nil;
// use the Emit helpers so nil handlers are skipped without scattering
// checks through adapter code.
type Handlers struct {
	OnMessage      func(message.Inbound)
	OnError        func(error)
	OnConnected    func()
	OnDisconnected func()
}

// EmitMessage invokes OnMessage if set.
func (h Handlers) EmitMessage(msg message.Inbound) {
	if h.OnMessage != nil {
		h.OnMessage(msg)
	}
}

// EmitError invokes OnError if set.
func (h Handlers) EmitError(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// EmitConnected invokes OnConnected if set.
func (h Handlers) EmitConnected() {
	if h.OnConnected != nil {
		h.OnConnected()
	}
}

// EmitDisconnected invokes OnDisconnected if set.
func (h Handlers) EmitDisconnected() {
	if h.OnDisconnected != nil {
		h.OnDisconnected()
	}
}

// Adapter is the interface implemented by all platform adapters.
type Adapter interface {
	// Channel returns the platform this adapter serves.
	Channel() message.ChannelType

	// Start connects to the platform and begins delivering normalized
	// messages to the handler set. A disabled adapter logs and returns
	// nil without connecting.
	Start(handlers Handlers) error

	// Send delivers an outbound message. Returns ErrNotConnected when
	// called before Start or after Stop.
	Send(msg message.Outbound) error

	// IsConnected reports whether a live platform connection exists.
	IsConnected() bool

	// Stop tears down the platform connection and releases resources.
	Stop() error
}
