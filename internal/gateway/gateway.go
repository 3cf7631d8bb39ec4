package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/channel/dingtalk"
	"github.com/keepmind9/chanbridge/internal/channel/discord"
	"github.com/keepmind9/chanbridge/internal/channel/feishu"
	"github.com/keepmind9/chanbridge/internal/channel/telegram"
	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
)

// Gateway fans normalized messages from all registered adapters into one
// host handler set and routes outbound sends to the right adapter.
type Gateway struct {
	mu       sync.RWMutex
	adapters map[message.ChannelType]channel.Adapter
	handlers channel.Handlers
}

// New creates an empty Gateway delivering to the given handler set.
func New(handlers channel.Handlers) *Gateway {
	return &Gateway{
		adapters: make(map[message.ChannelType]channel.Adapter),
		handlers: handlers,
	}
}

// NewFromConfig builds a Gateway with one adapter per enabled channel.
func NewFromConfig(config *Config, handlers channel.Handlers) (*Gateway, error) {
	g := New(handlers)

	for name, ch := range config.Channels {
		if !ch.Enabled {
			logger.WithField("channel", name).Info("channel-disabled-skipping")
			continue
		}

		switch name {
		case ChannelKeyTelegram:
			g.Register(telegram.New(telegram.Config{
				Enabled:      true,
				Token:        ch.Token,
				AllowedUsers: ch.AllowedUsers,
			}))
		case ChannelKeyDiscord:
			g.Register(discord.New(discord.Config{
				Enabled:      true,
				Token:        ch.Token,
				ChannelID:    ch.ChannelID,
				AllowedUsers: ch.AllowedUsers,
			}))
		case ChannelKeyFeishu:
			g.Register(feishu.New(feishu.Config{
				Enabled:           true,
				AppID:             ch.AppID,
				AppSecret:         ch.AppSecret,
				EncryptKey:        ch.EncryptKey,
				VerificationToken: ch.VerificationToken,
				AllowedUsers:      ch.AllowedUsers,
			}))
		case ChannelKeyDingTalk:
			g.Register(dingtalk.New(dingtalk.Config{
				Enabled:      true,
				ClientID:     ch.ClientID,
				ClientSecret: ch.ClientSecret,
				AllowedUsers: ch.AllowedUsers,
			}))
		default:
			return nil, fmt.Errorf("unknown channel type %q", name)
		}

		logger.WithField("channel", name).Info("channel-adapter-registered")
	}

	if len(g.adapters) == 0 {
		return nil, fmt.Errorf("no channels enabled")
	}

	return g, nil
}

// Register adds an adapter. Registering a second adapter for the same
// channel replaces the first.
func (g *Gateway) Register(a channel.Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adapters[a.Channel()] = a
}

// Start starts every registered adapter. On failure the adapters already
// started are stopped again and the error is returned.
func (g *Gateway) Start() error {
	g.mu.RLock()
	adapters := make([]channel.Adapter, 0, len(g.adapters))
	for _, a := range g.adapters {
		adapters = append(adapters, a)
	}
	g.mu.RUnlock()

	var started []channel.Adapter
	for _, a := range adapters {
		if err := a.Start(g.adapterHandlers(a.Channel())); err != nil {
			for _, s := range started {
				if stopErr := s.Stop(); stopErr != nil {
					logger.WithFields(logrus.Fields{
						"channel": s.Channel(),
						"error":   stopErr,
					}).Error("failed-to-stop-adapter-during-rollback")
				}
			}
			return fmt.Errorf("failed to start %s adapter: %w", a.Channel(), err)
		}
		started = append(started, a)
	}

	logger.WithField("adapters", len(adapters)).Info("gateway-started")
	return nil
}

// adapterHandlers wraps the host handler set with per-channel logging.
func (g *Gateway) adapterHandlers(ch message.ChannelType) channel.Handlers {
	return channel.Handlers{
		OnMessage: func(msg message.Inbound) {
			logger.WithFields(logrus.Fields{
				"platform": msg.Channel,
				"chat_id":  msg.ChatID,
				"user":     msg.User.ID,
			}).Debug("inbound-message-normalized")
			g.handlers.EmitMessage(msg)
		},
		OnError: func(err error) {
			logger.WithFields(logrus.Fields{
				"channel": ch,
				"error":   err,
			}).Error("channel-adapter-error")
			g.handlers.EmitError(err)
		},
		OnConnected: func() {
			logger.WithField("channel", ch).Info("channel-connected")
			g.handlers.EmitConnected()
		},
		OnDisconnected: func() {
			logger.WithField("channel", ch).Info("channel-disconnected")
			g.handlers.EmitDisconnected()
		},
	}
}

// Send routes an outbound message to the adapter serving the channel.
func (g *Gateway) Send(ch message.ChannelType, out message.Outbound) error {
	g.mu.RLock()
	a, ok := g.adapters[ch]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no adapter registered for channel %s", ch)
	}
	return a.Send(out)
}

// Adapter returns the adapter registered for a channel.
func (g *Gateway) Adapter(ch message.ChannelType) (channel.Adapter, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.adapters[ch]
	return a, ok
}

// ConnectedChannels lists the channels with a live connection.
func (g *Gateway) ConnectedChannels() []message.ChannelType {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []message.ChannelType
	for ch, a := range g.adapters {
		if a.IsConnected() {
			out = append(out, ch)
		}
	}
	return out
}

// Stop stops every registered adapter, collecting errors.
func (g *Gateway) Stop() error {
	g.mu.RLock()
	adapters := make([]channel.Adapter, 0, len(g.adapters))
	for _, a := range g.adapters {
		adapters = append(adapters, a)
	}
	g.mu.RUnlock()

	var errs []error
	for _, a := range adapters {
		if err := a.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s adapter: %w", a.Channel(), err))
		}
	}

	logger.Info("gateway-stopped")
	return errors.Join(errs...)
}
