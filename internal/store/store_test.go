package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

const seedContent = `{
  "users": [
    {"id": 1, "name": "Alice"},
    {"id": 2, "name": "Bob"}
  ],
  "posts": []
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFileJSON(t *testing.T, path string) map[string][]Record {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var data map[string][]Record
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("backing file is not valid JSON: %v", err)
	}
	return data
}

func TestLoad(t *testing.T) {
	s := New(writeSeed(t, seedContent))
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.Resources(); !reflect.DeepEqual(got, []string{"posts", "users"}) {
		t.Errorf("Resources() = %v", got)
	}

	users, ok := s.Get("users")
	if !ok || len(users) != 2 {
		t.Fatalf("users = %v, ok = %v", users, ok)
	}
	if users[0]["name"] != "Alice" {
		t.Errorf("first user = %v, insertion order not preserved", users[0])
	}

	// Empty collections survive as empty, not missing.
	posts, ok := s.Get("posts")
	if !ok || posts == nil || len(posts) != 0 {
		t.Errorf("posts = %v, ok = %v", posts, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.json"))
	err := s.Load()

	var dfErr *DataFileError
	if !errors.As(err, &dfErr) {
		t.Fatalf("error = %v, want *DataFileError", err)
	}
}

func TestLoadInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{{{"},
		{"top-level array", `[1, 2]`},
		{"resource not an array", `{"users": {"id": 1}}`},
		{"record not an object", `{"users": [42]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(writeSeed(t, tt.content))
			err := s.Load()

			var dfErr *DataFileError
			if !errors.As(err, &dfErr) {
				t.Fatalf("error = %v, want *DataFileError", err)
			}
		})
	}
}

func TestMutatePersists(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	err := s.Mutate("users", func(records []Record) ([]Record, error) {
		return append(records, Record{"id": float64(3), "name": "Carol"}), nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	// The backing file equals a serialization of the in-memory store.
	onDisk := readFileJSON(t, path)
	if len(onDisk["users"]) != 3 {
		t.Errorf("file has %d users, want 3", len(onDisk["users"]))
	}
	if onDisk["users"][2]["name"] != "Carol" {
		t.Errorf("persisted record = %v", onDisk["users"][2])
	}
}

func TestMutateAbortsOnError(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	boom := errors.New("boom")
	err := s.Mutate("users", func(records []Record) ([]Record, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	users, _ := s.Get("users")
	if len(users) != 2 {
		t.Errorf("in-memory state changed on aborted mutation: %v", users)
	}
	after, _ := os.ReadFile(path)
	if !reflect.DeepEqual(before, after) {
		t.Error("backing file changed on aborted mutation")
	}
}

func TestReadOnlyNeverWrites(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path, WithReadOnly(true))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	err := s.Mutate("users", func(records []Record) ([]Record, error) {
		return append(records, Record{"id": float64(3)}), nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	after, _ := os.ReadFile(path)
	if !reflect.DeepEqual(before, after) {
		t.Error("read-only store wrote to the backing file")
	}

	// The in-memory mutation is still visible.
	users, _ := s.Get("users")
	if len(users) != 3 {
		t.Errorf("in-memory users = %d, want 3", len(users))
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	if err := s.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	onDisk := readFileJSON(t, path)
	if len(onDisk) != 2 {
		t.Errorf("key set changed: %v", onDisk)
	}
	if len(onDisk["users"]) != 2 || onDisk["users"][1]["name"] != "Bob" {
		t.Errorf("record contents changed: %v", onDisk["users"])
	}
}

func TestReloadSwapsOnValidContent(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	hookFired := false
	s.OnReload(func() { hookFired = true })

	next := `{"articles": [{"id": 1}]}`
	if err := os.WriteFile(path, []byte(next), 0600); err != nil {
		t.Fatal(err)
	}

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !hookFired {
		t.Error("reload hook did not fire")
	}
	if got := s.Resources(); !reflect.DeepEqual(got, []string{"articles"}) {
		t.Errorf("Resources() after reload = %v", got)
	}
}

func TestReloadRetainsStateOnInvalidContent(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	hookFired := false
	s.OnReload(func() { hookFired = true })

	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	err := s.Reload()
	var dfErr *DataFileError
	if !errors.As(err, &dfErr) {
		t.Fatalf("error = %v, want *DataFileError", err)
	}
	if hookFired {
		t.Error("reload hook fired for a failed reload")
	}

	users, ok := s.Get("users")
	if !ok || len(users) != 2 {
		t.Errorf("previous state lost after failed reload: %v", users)
	}
}

func TestConcurrentMutationsKeepFileInSync(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := s.Mutate("users", func(records []Record) ([]Record, error) {
				return append(records, Record{"id": float64(100 + n)}), nil
			})
			if err != nil {
				t.Errorf("Mutate: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// The backing file must equal a serialization of the final state.
	onDisk := readFileJSON(t, path)
	users, _ := s.Get("users")
	if len(users) != 2+writers {
		t.Fatalf("in-memory users = %d, want %d", len(users), 2+writers)
	}
	if !reflect.DeepEqual(onDisk["users"], users) {
		t.Errorf("backing file out of sync:\n file: %v\n mem:  %v", onDisk["users"], users)
	}
}

func TestSnapshotUnaffectedByLaterMutation(t *testing.T) {
	s := New(writeSeed(t, seedContent))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()

	if err := s.Mutate("users", func(records []Record) ([]Record, error) {
		return append(records, Record{"id": float64(3), "name": "Carol"}), nil
	}); err != nil {
		t.Fatal(err)
	}

	if len(snap["users"]) != 2 {
		t.Errorf("snapshot users = %d, want 2", len(snap["users"]))
	}
	users, _ := s.Get("users")
	if len(users) != 3 {
		t.Errorf("store users = %d, want 3", len(users))
	}
}

func TestChanged(t *testing.T) {
	path := writeSeed(t, seedContent)
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	changed, err := s.Changed()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("Changed() = true right after Load")
	}

	// The store's own persist must not look like an external change.
	if err := s.Mutate("users", func(records []Record) ([]Record, error) {
		return append(records, Record{"id": float64(3)}), nil
	}); err != nil {
		t.Fatal(err)
	}
	changed, err = s.Changed()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("Changed() = true after the store's own persist")
	}

	// An external edit is detected.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"other": []}`), 0600); err != nil {
		t.Fatal(err)
	}
	changed, err = s.Changed()
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("Changed() = false after an external edit")
	}
}
