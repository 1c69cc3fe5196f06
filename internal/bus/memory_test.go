package bus

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub1, err := b.Subscribe(ctx, "chat")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	sub2, err := b.Subscribe(ctx, "chat")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Publish(ctx, "chat", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for _, sub := range []Subscription{sub1, sub2} {
		select {
		case msg := <-sub.Messages():
			if string(msg) != "hello" {
				t.Errorf("expected hello, got %q", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	chatSub, _ := b.Subscribe(ctx, "chat")
	controlSub, _ := b.Subscribe(ctx, "control")

	b.Publish(ctx, "control", []byte("evict"))

	select {
	case msg := <-controlSub.Messages():
		if string(msg) != "evict" {
			t.Errorf("expected evict, got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for control message")
	}

	select {
	case msg := <-chatSub.Messages():
		t.Errorf("chat subscriber should not see control traffic, got %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishOrderPreservedPerPublisher(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, "chat")

	for i := 0; i < 10; i++ {
		b.Publish(ctx, "chat", []byte(fmt.Sprintf("msg-%d", i)))
	}

	for i := 0; i < 10; i++ {
		select {
		case msg := <-sub.Messages():
			want := fmt.Sprintf("msg-%d", i)
			if string(msg) != want {
				t.Fatalf("expected %q, got %q", want, msg)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestClosedSubscriptionStopsReceiving(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, "chat")
	sub.Close()

	if err := b.Publish(ctx, "chat", []byte("late")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if _, ok := <-sub.Messages(); ok {
		t.Error("expected closed messages channel")
	}
}
