package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/najdeno/internal/db"
)

func TestConsumeToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	used, err := IsTokenUsed(ctx, database, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenUsed: %v", err)
	}
	if used {
		t.Error("expected token not to be used")
	}

	fresh, err := ConsumeToken(ctx, database, "jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ConsumeToken: %v", err)
	}
	if !fresh {
		t.Error("expected first consume to succeed")
	}

	fresh, err = ConsumeToken(ctx, database, "jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second ConsumeToken: %v", err)
	}
	if fresh {
		t.Error("expected replayed token to be rejected")
	}

	used, _ = IsTokenUsed(ctx, database, "jti-2")
	if used {
		t.Error("expected different token not to be used")
	}
}
