package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glanceboard/storekit/pkg/aead"
)

var _ Backend = (*FileBackend)(nil)
var _ Flusher = (*FileBackend)(nil)

func TestFileBackend_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")

	b, err := NewJSONFileBackend("notes", path)
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}
	if err := b.Set("greeting", "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set("count", 7); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewJSONFileBackend("notes", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get("greeting"); !ok || v != "hello" {
		t.Fatalf("Get after reopen = %v, %v", v, ok)
	}
	// JSON numbers come back as float64.
	if v, ok := reopened.Get("count"); !ok || v != float64(7) {
		t.Fatalf("count after reopen = %v (%T)", v, v)
	}
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	b, err := NewJSONFileBackend("fresh", filepath.Join(t.TempDir(), "fresh.json"))
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d on fresh namespace", b.Len())
	}
}

func TestFileBackend_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := NewJSONFileBackend("broken", path)
	if err == nil {
		t.Fatal("expected error for corrupt file")
	}
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("error = %v, want ErrCorruptFile", err)
	}

	var serr *StorageError
	if !errors.As(err, &serr) || serr.Namespace != "broken" {
		t.Fatalf("error = %v, want StorageError for namespace broken", err)
	}

	// The corrupt file must survive for manual inspection.
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("corrupt file was removed: %v", statErr)
	}
}

func TestFileBackend_SetManyFailFast(t *testing.T) {
	b, err := NewJSONFileBackend("batch", filepath.Join(t.TempDir(), "batch.json"))
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}

	err = b.SetMany(map[string]any{
		"good": 1,
		"bad":  make(chan int),
	})
	if err == nil {
		t.Fatal("expected SetMany to reject unserializable value")
	}
	if b.Len() != 0 {
		t.Fatal("partial SetMany applied some entries")
	}
}

func TestFileBackend_StrayTempFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	// A leftover from a crashed rewrite must not affect loading.
	if err := os.WriteFile(filepath.Join(dir, ".storekit-123.tmp"), []byte("garbage"), 0600); err != nil {
		t.Fatalf("write stray temp: %v", err)
	}

	b, err := NewJSONFileBackend("data", path)
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}
	if err := b.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewJSONFileBackend("data", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %v, %v", v, ok)
	}
}

func TestFileBackend_DebouncedWritesFlushOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.json")

	b, err := NewJSONFileBackend("busy", path,
		WithWriteDebounce(1, 1, time.Minute))
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}

	for i := 0; i < 20; i++ {
		if err := b.Set(fmt.Sprintf("k%d", i), i); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewJSONFileBackend("busy", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Len() != 20 {
		t.Fatalf("Len after reopen = %d, want 20", reopened.Len())
	}
}

func TestFileBackend_EncryptedRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, aead.KeySize)
	cipher, err := aead.New(key)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	path := filepath.Join(t.TempDir(), "secrets.json")
	b, err := NewJSONFileBackend("secrets", path, WithFileCipher(cipher))
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}
	if err := b.Set("token", "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// On-disk payload must not be readable JSON.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if bytes.Contains(raw, []byte("s3cret")) {
		t.Fatal("plaintext leaked to disk")
	}

	reopened, err := NewJSONFileBackend("secrets", path, WithFileCipher(cipher))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get("token"); !ok || v != "s3cret" {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	// A different key must fail as corruption, not as an empty namespace.
	otherKey := bytes.Repeat([]byte{0x43}, aead.KeySize)
	otherCipher, err := aead.New(otherKey)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}
	if _, err := NewJSONFileBackend("secrets", path, WithFileCipher(otherCipher)); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("wrong key error = %v, want ErrCorruptFile", err)
	}
}

func TestGobFileBackend_RoundTrip(t *testing.T) {
	RegisterType(customPoint{})
	path := filepath.Join(t.TempDir(), "blob.bin")

	b, err := NewGobFileBackend("blob", path)
	if err != nil {
		t.Fatalf("NewGobFileBackend: %v", err)
	}
	if err := b.Set("point", customPoint{X: 4, Y: 5}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewGobFileBackend("blob", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	p, ok := reopened.Get("point")
	if !ok {
		t.Fatal("point missing after reopen")
	}
	if got := p.(customPoint); got.X != 4 || got.Y != 5 {
		t.Fatalf("point = %#v", got)
	}
}

func TestFileBackend_ConcurrentWriters(t *testing.T) {
	b, err := NewJSONFileBackend("load", filepath.Join(t.TempDir(), "load.json"),
		WithWriteDebounce(10, 10, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewJSONFileBackend: %v", err)
	}

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				if err := b.Set(key, i); err != nil {
					t.Errorf("Set %s: %v", key, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if b.Len() != workers*perWorker {
		t.Fatalf("Len = %d, want %d", b.Len(), workers*perWorker)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
