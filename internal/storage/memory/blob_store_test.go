package memory

import (
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("png-bytes")
	uri, err := store.PutObject(context.Background(), "diffs/1/abc.png", "image/png", payload)
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://diffs/1/abc.png" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'P'
	stored, ok := store.Get("diffs/1/abc.png")
	if !ok {
		t.Fatal("object not stored")
	}
	if string(stored) != "png-bytes" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one object, got %d", store.Len())
	}
}
