package auth

import (
	"context"
	"testing"

	"github.com/carlog/carlog/internal/model"
)

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if UserFromContext(ctx) != nil {
		t.Error("empty context should have no user")
	}
	if UserIDFromContext(ctx) != 0 {
		t.Error("empty context should have user ID 0")
	}

	user := &model.User{ID: 42, Username: "alice", Email: "a@x.com"}
	ctx = ContextWithUser(ctx, user)

	if got := UserFromContext(ctx); got != user {
		t.Errorf("UserFromContext = %v, want %v", got, user)
	}
	if got := UserIDFromContext(ctx); got != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", got)
	}
}

func TestMustUserFromContext_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic without user in context")
		}
	}()
	MustUserFromContext(context.Background())
}
