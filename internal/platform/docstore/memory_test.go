package docstore_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/classquest/classquest/internal/platform/docstore"
)

type testDoc struct {
	Name  string  `json:"name"`
	Count float64 `json:"count"`
}

func TestMemory_GetNotFound(t *testing.T) {
	store := docstore.NewMemory()

	var out testDoc
	err := store.Get(t.Context(), "things", "missing", &out)
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemory_PutGet(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	if err := store.Put(ctx, "things", "a", testDoc{Name: "alpha", Count: 2}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var got testDoc
	if err := store.Get(ctx, "things", "a", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "alpha" || got.Count != 2 {
		t.Errorf("Get() = %+v, want {alpha 2}", got)
	}
}

func TestMemory_CreateIsConditional(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	created, err := store.Create(ctx, "things", "a", testDoc{Name: "first"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created {
		t.Fatal("Create() = false on empty key, want true")
	}

	created, err = store.Create(ctx, "things", "a", testDoc{Name: "second"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created {
		t.Error("Create() = true on taken key, want false")
	}

	// The losing write must not have replaced the document.
	var got testDoc
	if err := store.Get(ctx, "things", "a", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "first" {
		t.Errorf("Name = %q, want first", got.Name)
	}
}

func TestMemory_Increment(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	got, err := store.Increment(ctx, "users", "u1", "xp", 50)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if got != 50 {
		t.Errorf("Increment() = %v, want 50 (missing doc counts as zero)", got)
	}

	got, err = store.Increment(ctx, "users", "u1", "xp", 25)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if got != 75 {
		t.Errorf("Increment() = %v, want 75", got)
	}
}

func TestMemory_IncrementPreservesOtherFields(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	if err := store.Put(ctx, "users", "u1", map[string]any{"name": "Ada", "xp": 10}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := store.Increment(ctx, "users", "u1", "xp", 5); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	var got map[string]any
	if err := store.Get(ctx, "users", "u1", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", got["name"])
	}
	if got["xp"].(float64) != 15 {
		t.Errorf("xp = %v, want 15", got["xp"])
	}
}

func TestMemory_ListKeys(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	for _, key := range []string{"s1/c2", "s1/c1", "s2/c1"} {
		if err := store.Put(ctx, "progress", key, testDoc{}); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	keys, err := store.ListKeys(ctx, "progress", "s1/")
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "s1/c1" || keys[1] != "s1/c2" {
		t.Errorf("ListKeys() = %v, want [s1/c1 s1/c2]", keys)
	}
}

func TestMemory_TxnCommitsAllWrites(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	err := store.RunTxn(ctx, func(tx docstore.Txn) error {
		if err := tx.Put(ctx, "things", "a", testDoc{Name: "a"}); err != nil {
			return err
		}
		if _, err := tx.Increment(ctx, "users", "u1", "xp", 10); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTxn() error = %v", err)
	}

	var doc testDoc
	if err := store.Get(ctx, "things", "a", &doc); err != nil {
		t.Errorf("Get() after commit error = %v", err)
	}
	var user map[string]float64
	if err := store.Get(ctx, "users", "u1", &user); err != nil {
		t.Fatalf("Get() user error = %v", err)
	}
	if user["xp"] != 10 {
		t.Errorf("xp = %v, want 10", user["xp"])
	}
}

func TestMemory_TxnErrorDiscardsAllWrites(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	boom := fmt.Errorf("boom")
	err := store.RunTxn(ctx, func(tx docstore.Txn) error {
		if err := tx.Put(ctx, "things", "a", testDoc{Name: "a"}); err != nil {
			return err
		}
		if _, err := tx.Increment(ctx, "users", "u1", "xp", 10); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunTxn() error = %v, want boom", err)
	}

	var doc testDoc
	if err := store.Get(ctx, "things", "a", &doc); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Get() after rollback error = %v, want ErrNotFound", err)
	}
	var user map[string]float64
	if err := store.Get(ctx, "users", "u1", &user); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Get() user after rollback error = %v, want ErrNotFound", err)
	}
}

func TestMemory_TxnReadsOwnWrites(t *testing.T) {
	store := docstore.NewMemory()
	ctx := t.Context()

	err := store.RunTxn(ctx, func(tx docstore.Txn) error {
		if err := tx.Put(ctx, "things", "a", testDoc{Name: "inside"}); err != nil {
			return err
		}
		var got testDoc
		if err := tx.Get(ctx, "things", "a", &got); err != nil {
			return err
		}
		if got.Name != "inside" {
			return fmt.Errorf("read inside txn = %q, want inside", got.Name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTxn() error = %v", err)
	}
}
