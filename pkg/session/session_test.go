package session

import (
	"fmt"
	"testing"

	"github.com/rcliao/teeny-mcp/pkg/message"
)

func TestNewConversationEmpty(t *testing.T) {
	c := NewConversation()
	if c.Len() != 0 {
		t.Fatalf("expected 0 messages, got %d", c.Len())
	}
	if len(c.Messages()) != 0 {
		t.Fatal("expected empty snapshot")
	}
	if c.Created().IsZero() {
		t.Fatal("created time not set")
	}
}

func TestAppendAndMessages(t *testing.T) {
	c := NewConversation()
	c.Append(message.NewUser("hello", message.KindText, nil))
	c.Append(message.NewAssistant("hi", message.KindText, nil))

	h := c.Messages()
	if len(h) != 2 {
		t.Fatalf("want 2 messages, got %d", len(h))
	}
	if h[0].Content() != "hello" || h[1].Content() != "hi" {
		t.Fatalf("unexpected content: %v", h)
	}
}

func TestAppendMultiplePreservesOrder(t *testing.T) {
	c := NewConversation()
	c.Append(
		message.NewUser("a", message.KindText, nil),
		message.NewUser("b", message.KindText, nil),
		message.NewUser("c", message.KindText, nil),
	)
	for i, want := range []string{"a", "b", "c"} {
		m, ok := c.At(i)
		if !ok || m.Content() != want {
			t.Fatalf("At(%d) = %v, %v; want %q", i, m, ok, want)
		}
	}
}

func TestAppendNothing(t *testing.T) {
	c := NewConversation()
	before := c.Updated()
	c.Append()
	if c.Len() != 0 || c.Updated() != before {
		t.Fatal("empty append should be a no-op")
	}
}

func TestMessagesIsCopy(t *testing.T) {
	c := NewConversation()
	c.Append(message.NewUser("a", message.KindText, nil))
	h := c.Messages()
	h[0] = message.NewUser("mutated", message.KindText, nil)
	if m, _ := c.At(0); m.Content() != "a" {
		t.Fatal("Messages returned a reference, not a copy")
	}
}

func TestPositionsStableAcrossAppends(t *testing.T) {
	c := NewConversation()
	for i := 0; i < 10; i++ {
		c.Append(message.NewUser(fmt.Sprintf("m%d", i), message.KindText, nil))
		for j := 0; j <= i; j++ {
			m, _ := c.At(j)
			if m.Content() != fmt.Sprintf("m%d", j) {
				t.Fatalf("after append %d, position %d holds %q", i, j, m.Content())
			}
		}
	}
}

func TestAtOutOfRange(t *testing.T) {
	c := NewConversation()
	if _, ok := c.At(0); ok {
		t.Fatal("expected false for empty conversation")
	}
	if _, ok := c.At(-1); ok {
		t.Fatal("expected false for negative index")
	}
}
