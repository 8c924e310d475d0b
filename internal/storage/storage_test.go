package storage

import (
	"context"
	"strings"
	"testing"
)

type fakeRepo struct {
	Repository
	dsn string
}

func mustPanic(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q, got none", substr)
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, substr) {
			t.Fatalf("panic = %v, want substring %q", r, substr)
		}
	}()
	fn()
}

func TestRegister_Panics(t *testing.T) {
	mustPanic(t, "empty driver", func() {
		Register("", func(context.Context, Config) (Repository, error) { return nil, nil })
	})
	mustPanic(t, "nil factory", func() {
		Register("bad", nil)
	})

	Register("dup-test", func(context.Context, Config) (Repository, error) { return nil, nil })
	mustPanic(t, "already registered", func() {
		Register("dup-test", func(context.Context, Config) (Repository, error) { return nil, nil })
	})
}

func TestNew_DispatchesToFactory(t *testing.T) {
	Register("fake-test", func(_ context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{dsn: cfg.DSN}, nil
	})

	repo, err := New(context.Background(), Config{Driver: "fake-test", DSN: "dsn://x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fr, ok := repo.(*fakeRepo)
	if !ok {
		t.Fatalf("New returned %T, want *fakeRepo", repo)
	}
	if fr.dsn != "dsn://x" {
		t.Fatalf("factory got dsn %q, want dsn://x", fr.dsn)
	}
}

func TestNew_RejectsMissingAndUnknownDrivers(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty driver")
	}
	if _, err := New(context.Background(), Config{Driver: "no-such"}); err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("err = %v, want unsupported driver", err)
	}
}

func TestInsertPlan_Upsert(t *testing.T) {
	if (InsertPlan{}).Upsert() {
		t.Fatalf("plan without key must not upsert")
	}
	if !(InsertPlan{Key: "isbn"}).Upsert() {
		t.Fatalf("plan with key must upsert")
	}
}
