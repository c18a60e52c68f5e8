package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nonexistent.jsonl"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if len(m.Records) != 0 {
		t.Errorf("expected empty manifest, got %d records", len(m.Records))
	}
}

func TestLoad_LastLineWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	content := `{"file":"/data/a.txt","md5":"aaa","size":10}
{"file":"/data/b.txt","md5":"bbb","size":20}
{"file":"/data/a.txt","md5":"ccc","size":30}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(m.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(m.Records))
	}

	a := m.Records["/data/a.txt"]
	if a.MD5 != "ccc" || a.Size != 30 {
		t.Errorf("expected latest record for /data/a.txt, got %+v", a)
	}
	if m.Seen["/data/a.txt"] != 2 {
		t.Errorf("expected 2 occurrences for /data/a.txt, got %d", m.Seen["/data/a.txt"])
	}
	if m.Seen["/data/b.txt"] != 1 {
		t.Errorf("expected 1 occurrence for /data/b.txt, got %d", m.Seen["/data/b.txt"])
	}
}

func TestLoad_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	content := `{"file":"/data/a.txt","md5":"aaa","size":10}
not json at all
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed line, got nil")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error to name line 2, got: %v", err)
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := Record{File: "/data/x.bin", MD5: "d41d8cd98f00b204e9800998ecf8427e", Size: 4096}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got != rec {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestWriter_AppendsWithoutTruncating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(Record{File: "/data/a.txt", MD5: "aaa", Size: 1}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// A second writer must not truncate previous records.
	w, err = NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(Record{File: "/data/b.txt", MD5: "bbb", Size: 2}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Records) != 2 {
		t.Errorf("expected 2 records after two append sessions, got %d", len(m.Records))
	}
}

func TestRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")

	// Pre-existing content with a duplicate that Rewrite must not carry over.
	content := `{"file":"/data/a.txt","md5":"old","size":1}
{"file":"/data/a.txt","md5":"old2","size":2}
{"file":"/data/gone.txt","md5":"zzz","size":3}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records := map[string]Record{
		"/data/a.txt": {File: "/data/a.txt", MD5: "new", Size: 5},
	}
	if err := Rewrite(path, records); err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line after rewrite, got %d: %q", len(lines), string(data))
	}

	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got := m.Records["/data/a.txt"]
	if got.MD5 != "new" || got.Size != 5 {
		t.Errorf("unexpected record after rewrite: %+v", got)
	}
}
