package ipc

import (
	"context"
	"errors"
	"testing"
	"time"

	"modhost/pkg/bus"
)

func TestSendTagsModuleID(t *testing.T) {
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	ch, err := Open(mb, "mod.a")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer ch.Close()

	if err := ch.Send(context.Background(), "sample-setting", true); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	msg, ok := mb.SubscribeOutbound(context.Background())
	if !ok {
		t.Fatal("expected outbound message")
	}
	if msg.ModuleID != "mod.a" || msg.EventType != "sample-setting" {
		t.Fatalf("message = %+v", msg)
	}
	if len(msg.Payload) != 1 || msg.Payload[0] != true {
		t.Fatalf("payload = %v, want [true]", msg.Payload)
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	a, err := Open(mb, "mod.a")
	if err != nil {
		t.Fatalf("Open a error: %v", err)
	}
	b, err := Open(mb, "mod.b")
	if err != nil {
		t.Fatalf("Open b error: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := mb.PublishInbound(ctx, bus.NewMessage("mod.a", "ping")); err != nil {
			t.Fatalf("PublishInbound error: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		select {
		case msg := <-a.Inbound():
			if msg.ModuleID != "mod.a" {
				t.Fatalf("module a received %+v", msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("module a missing message")
		}
	}

	select {
	case msg := <-b.Inbound():
		t.Fatalf("module b received %+v", msg)
	default:
	}
}

func TestOpenValidation(t *testing.T) {
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	if _, err := Open(nil, "mod.a"); err == nil {
		t.Fatal("expected error for nil bus")
	}
	if _, err := Open(mb, " "); err == nil {
		t.Fatal("expected error for blank module id")
	}
	if _, err := Open(mb, "mod.a"); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if _, err := Open(mb, "mod.a"); !errors.Is(err, bus.ErrAlreadyAttached) {
		t.Fatalf("error = %v, want ErrAlreadyAttached", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	ch, err := Open(mb, "mod.a")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ch.Close()
	ch.Close()

	if err := ch.Send(context.Background(), "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("error = %v, want ErrClosed", err)
	}
	if err := mb.PublishInbound(context.Background(), bus.NewMessage("mod.a", "init")); !errors.Is(err, bus.ErrUnknownModule) {
		t.Fatalf("error = %v, want ErrUnknownModule", err)
	}
}
