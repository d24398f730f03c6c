package store

import (
	"context"
	"testing"

	"github.com/erazemk/najdeno/internal/db"
)

func TestAppendAndListMessages(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, ItemParams{Name: "Bag", Finder: finder})

	for _, content := range []string{"hello", "is it yours?", "yes"} {
		if _, err := AppendMessage(ctx, database, item.ID, finder, applicant, content); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := ListMessages(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[2].Content != "yes" {
		t.Errorf("messages out of order: %+v", msgs)
	}
	if msgs[0].Read {
		t.Error("new messages should be unread")
	}
}

func TestMarkMessagesRead(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, ItemParams{Name: "Bag", Finder: finder})
	AppendMessage(ctx, database, item.ID, finder, applicant, "to applicant")
	AppendMessage(ctx, database, item.ID, applicant, finder, "to finder")

	n, err := MarkMessagesRead(ctx, database, item.ID, applicant)
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 message marked, got %d", n)
	}

	msgs, _ := ListMessages(ctx, database, item.ID)
	if !msgs[0].Read {
		t.Error("expected message to applicant to be read")
	}
	if msgs[1].Read {
		t.Error("expected message to finder to stay unread")
	}
}
