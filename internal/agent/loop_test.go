package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"flowmind/internal/domain"
)

// chanBus is a minimal MessageBus that hands outbound messages to a channel.
type chanBus struct {
	in  chan domain.InboundMessage
	out chan domain.OutboundMessage
}

func newChanBus() *chanBus {
	return &chanBus{in: make(chan domain.InboundMessage, 8), out: make(chan domain.OutboundMessage, 8)}
}

func (b *chanBus) Publish(m domain.InboundMessage)                 { b.in <- m }
func (b *chanBus) Subscribe() <-chan domain.InboundMessage         { return b.in }
func (b *chanBus) SendOutbound(m domain.OutboundMessage)           { b.out <- m }
func (b *chanBus) OnOutbound(string, func(domain.OutboundMessage)) {}
func (b *chanBus) Close()                                          { close(b.in) }

type echoResponder struct {
	mu     sync.Mutex
	owners []string
}

func (e *echoResponder) Handle(_ context.Context, owner, text string) Reply {
	e.mu.Lock()
	e.owners = append(e.owners, owner)
	e.mu.Unlock()
	return Reply{Text: "echo: " + text, Agent: AgentInfoFlow}
}

func TestLoop_RunRepliesOnOriginChannel(t *testing.T) {
	bus := newChanBus()
	resp := &echoResponder{}
	loop := NewLoop(LoopConfig{Responder: resp, Bus: bus, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	bus.Publish(domain.InboundMessage{Channel: "telegram", ChatID: "42", SenderID: "u7", Content: "hi"})

	select {
	case out := <-bus.out:
		if out.Channel != "telegram" || out.ChatID != "42" || out.Content != "echo: hi" || out.Agent != AgentInfoFlow {
			t.Errorf("outbound = %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}
	resp.mu.Lock()
	defer resp.mu.Unlock()
	if len(resp.owners) != 1 || resp.owners[0] != "u7" {
		t.Errorf("owners = %v", resp.owners)
	}
}

func TestLoop_RunStopsWhenBusCloses(t *testing.T) {
	bus := newChanBus()
	loop := NewLoop(LoopConfig{Responder: &echoResponder{}, Bus: bus, Logger: testLogger()})

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()
	bus.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop still running")
	}
}

func TestOwnerOfFallsBackToChat(t *testing.T) {
	if got := ownerOf(domain.InboundMessage{ChatID: "c1"}); got != "c1" {
		t.Errorf("owner = %q", got)
	}
}

func TestLoop_ProcessDirectRunsCommands(t *testing.T) {
	store := newMemStore()
	resp := &echoResponder{}
	loop := NewLoop(LoopConfig{
		Responder: resp,
		Commands:  NewCommands(store, func() time.Time { return refNow }),
		Logger:    testLogger(),
	})

	reply := loop.ProcessDirect(context.Background(), "u1", "/help")
	if !strings.Contains(reply.Text, "flowmind commands") || reply.Agent != "command" {
		t.Errorf("reply = %+v", reply)
	}

	reply = loop.ProcessDirect(context.Background(), "u1", "/unknown thing")
	if reply.Text != "echo: /unknown thing" {
		t.Errorf("unknown command not forwarded: %+v", reply)
	}
}

func TestLoop_RegistersSendersOnce(t *testing.T) {
	store := newMemStore()
	loop := NewLoop(LoopConfig{Responder: &echoResponder{}, Users: store, Logger: testLogger()})

	loop.ProcessDirect(context.Background(), "u1", "hello")
	loop.ProcessDirect(context.Background(), "u1", "again")
	loop.ProcessDirect(context.Background(), "u2", "hi")

	users, _ := store.ListUsers(context.Background())
	if len(users) != 2 || users[0].ID != "u1" || users[1].ID != "u2" {
		t.Errorf("users = %+v", users)
	}
}
