package auth

import (
	"context"
	"testing"

	"github.com/oblivio-company/famjam/internal/model"
)

func TestWithActorAndFromContext(t *testing.T) {
	a := Actor{
		UserID:   1,
		FamilyID: 2,
		Role:     model.RoleParent,
	}

	ctx := WithActor(context.Background(), a)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Actor in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.FamilyID != 2 {
		t.Errorf("FamilyID = %d, want 2", got.FamilyID)
	}
	if got.Role != model.RoleParent {
		t.Errorf("Role = %q, want %q", got.Role, model.RoleParent)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing Actor")
	}
}

func TestFamilyID(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{FamilyID: 42})
	if FamilyID(ctx) != 42 {
		t.Errorf("FamilyID = %d, want 42", FamilyID(ctx))
	}
	if FamilyID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestIsParent(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{Role: model.RoleParent})
	if !IsParent(ctx) {
		t.Error("expected IsParent = true for parent role")
	}
	ctx = WithActor(context.Background(), Actor{Role: model.RoleChild})
	if IsParent(ctx) {
		t.Error("expected IsParent = false for child role")
	}
	if IsParent(context.Background()) {
		t.Error("expected IsParent = false for missing context")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPassword(hash, "hunter2hunter2") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected wrong password to fail")
	}
}
