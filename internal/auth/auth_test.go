package auth

import (
	"context"
	"testing"

	"github.com/secsim/phishportal/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("password stored in the clear")
	}

	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
	if CheckPassword("", "anything") {
		t.Error("empty hash accepted")
	}
}

func TestUserContext(t *testing.T) {
	if got := UserFrom(context.Background()); got != nil {
		t.Fatalf("empty context returned user %+v", got)
	}

	u := &models.User{Username: "alice"}
	ctx := WithUser(context.Background(), u)
	if got := UserFrom(ctx); got != u {
		t.Fatalf("UserFrom = %+v, want stored user", got)
	}
}
