package bus

import (
	"testing"
	"time"

	"flowmind/internal/domain"
)

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(2, testEBLogger())
	b.Publish(domain.InboundMessage{Channel: "cli", ChatID: "1", Content: "show my tasks"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "show my tasks" {
			t.Fatalf("unexpected content %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryBus_OutboundRoutesByChannel(t *testing.T) {
	b := New(1, testEBLogger())
	var got []domain.OutboundMessage
	b.OnOutbound("telegram", func(m domain.OutboundMessage) { got = append(got, m) })

	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", Content: "hi", Agent: "taskflow"})
	b.SendOutbound(domain.OutboundMessage{Channel: "nowhere", Content: "dropped"})

	if len(got) != 1 || got[0].Agent != "taskflow" {
		t.Fatalf("unexpected deliveries %+v", got)
	}
}

func TestInMemoryBus_CloseEndsSubscription(t *testing.T) {
	b := New(1, nil)
	b.Close()
	b.Close()
	b.Publish(domain.InboundMessage{Content: "late"})

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("expected closed channel")
	}
}
