package store

import (
	"testing"

	"github.com/oblivio-company/famjam/internal/model"
)

func TestUsernameUniquePerFamily(t *testing.T) {
	db, family, kid := setupTest(t)
	s := NewUserStore(db)

	got, err := s.GetByUsername(family.ID, kid.Username)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got == nil || got.ID != kid.ID {
		t.Fatalf("expected to find %q, got %+v", kid.Username, got)
	}

	// Same username in a different family is fine.
	other, err := NewFamilyStore(db).Create("Other Family", "OTHER123")
	if err != nil {
		t.Fatalf("create family failed: %v", err)
	}
	if _, err := s.Create(other.ID, kid.Username, nil, model.RoleChild, "x"); err != nil {
		t.Fatalf("expected duplicate username across families to succeed: %v", err)
	}
}

func TestSetUsernameAndPassword(t *testing.T) {
	db, _, kid := setupTest(t)
	s := NewUserStore(db)

	if err := s.SetUsername(kid.ID, "renamed"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if err := s.SetPasswordHash(kid.ID, "newhash"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}

	got, err := s.GetByID(kid.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Username != "renamed" {
		t.Errorf("expected username renamed, got %q", got.Username)
	}
	if got.PasswordHash != "newhash" {
		t.Errorf("expected updated password hash, got %q", got.PasswordHash)
	}
}

func TestCountParents(t *testing.T) {
	db, family, _ := setupTest(t)
	s := NewUserStore(db)

	n, err := s.CountParents(family.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 parents, got %d", n)
	}

	email := "mom@example.com"
	if _, err := s.Create(family.ID, "mom", &email, model.RoleParent, "x"); err != nil {
		t.Fatalf("create parent failed: %v", err)
	}
	n, err = s.CountParents(family.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 parent, got %d", n)
	}
}

func TestFamilyDeleteCascades(t *testing.T) {
	db, family, kid := setupTest(t)
	tasks := NewTaskStore(db)

	if _, err := tasks.Insert(taskRow(family.ID, kid.ID, "Dishes", day(10))); err != nil {
		t.Fatalf("insert task failed: %v", err)
	}

	if err := NewFamilyStore(db).Delete(family.ID); err != nil {
		t.Fatalf("delete family failed: %v", err)
	}

	gone, err := NewUserStore(db).GetByID(kid.ID)
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if gone != nil {
		t.Errorf("expected user to cascade away, got %+v", gone)
	}
	list, err := tasks.ListByFamilyRange(family.ID, day(1), day(28))
	if err != nil {
		t.Fatalf("list tasks failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected tasks to cascade away, got %d", len(list))
	}
}
