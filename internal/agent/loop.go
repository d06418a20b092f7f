package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flowmind/internal/domain"
)

const defaultConcurrency = 3

// Responder answers one user turn.
type Responder interface {
	Handle(ctx context.Context, owner, text string) Reply
}

type LoopConfig struct {
	Responder   Responder
	Commands    *Commands // optional slash commands
	Bus         domain.MessageBus
	Users       UserRegistry // optional: registers senders for the proactive scanner
	Logger      *slog.Logger
	Concurrency int // max parallel messages (default 3)
}

// UserRegistry records the users the assistant has talked to.
type UserRegistry interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
}

// Loop feeds inbound bus messages to the orchestrator and publishes replies
// back to the originating channel.
type Loop struct {
	responder   Responder
	commands    *Commands
	bus         domain.MessageBus
	users       UserRegistry
	known       sync.Map // owner -> struct{}
	logger      *slog.Logger
	concurrency int
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		responder:   cfg.Responder,
		commands:    cfg.Commands,
		bus:         cfg.Bus,
		users:       cfg.Users,
		logger:      cfg.Logger.With("component", "loop"),
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages and processes them with bounded concurrency.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("agent loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("agent loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, agent loop stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				l.processMessage(ctx, m)
			}(msg)
		}
	}
}

// ProcessDirect answers synchronously. Used by the CLI, the HTTP API and
// the MCP server, which need a blocking reply.
func (l *Loop) ProcessDirect(ctx context.Context, owner, content string) Reply {
	return l.answer(ctx, owner, content)
}

// answer runs slash commands locally and everything else through the responder.
func (l *Loop) answer(ctx context.Context, owner, content string) Reply {
	l.register(ctx, owner)
	if cmd := ParseCommand(content); cmd != nil && l.commands != nil {
		if res := l.commands.Handle(ctx, owner, cmd); res.Handled {
			return Reply{Text: res.Response, Agent: "command", Stages: []Stage{StageReceived, StageDone}}
		}
	}
	return l.responder.Handle(ctx, owner, content)
}

// register stores owner once per process so background scans include them.
func (l *Loop) register(ctx context.Context, owner string) {
	if l.users == nil || owner == "" {
		return
	}
	if _, seen := l.known.LoadOrStore(owner, struct{}{}); seen {
		return
	}
	if _, err := l.users.CreateUser(ctx, domain.User{ID: owner}); err != nil {
		l.known.Delete(owner)
		l.logger.Warn("register user failed", "owner", owner, "error", err)
	}
}

func (l *Loop) processMessage(ctx context.Context, msg domain.InboundMessage) {
	owner := ownerOf(msg)
	l.logger.Info("processing message",
		"channel", msg.Channel,
		"owner", owner,
		"content_len", len(msg.Content),
	)

	start := time.Now()
	reply := l.answer(ctx, owner, msg.Content)

	l.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply.Text,
		Agent:   reply.Agent,
		Format:  "markdown",
	})
	l.logger.Debug("reply sent", "channel", msg.Channel, "agent", reply.Agent, "duration", time.Since(start))
}

// ownerOf picks the user a message acts for. Channels without a sender
// identity fall back to the chat.
func ownerOf(msg domain.InboundMessage) string {
	if msg.SenderID != "" {
		return msg.SenderID
	}
	return msg.ChatID
}
