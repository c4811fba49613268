package fileutil

import (
	"os"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	fs := NewMem("/data")
	if err := fs.WriteFile("notes/a.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := fs.ReadFile("notes/a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadFile = %q, want %q", got, "hello")
	}
}

func TestExists(t *testing.T) {
	fs := NewMem("/data")
	if ok, err := fs.Exists("missing.txt"); err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}
	_ = fs.WriteFile("present.txt", []byte("x"), 0o644)
	if ok, err := fs.Exists("present.txt"); err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v; want true, nil", ok, err)
	}
}

func TestPathEscapingRootIsRejected(t *testing.T) {
	fs := NewMem("/data")
	if _, err := fs.ReadFile("../etc/passwd"); err != ErrPathEscapesRoot {
		t.Fatalf("ReadFile(escaping path) error = %v, want ErrPathEscapesRoot", err)
	}
}

func TestNewWatcherOnRealDir(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	done := make(chan struct{})
	go func() {
		<-w.Events()
		close(done)
	}()

	if err := os.WriteFile(dir+"/touched.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case <-done:
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	}
}
