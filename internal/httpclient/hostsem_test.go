package httpclient

import (
	"context"
	"testing"
	"time"
)

func TestHostSemaphore_limitsPerHost(t *testing.T) {
	sem := NewHostSemaphore(2)
	ctx := context.Background()
	r1, err := sem.Acquire(ctx, "http://box/picon/a.png")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := sem.Acquire(ctx, "http://box/picon/b.png")
	if err != nil {
		t.Fatal(err)
	}

	// Third acquire on the same host must block until ctx expires.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := sem.Acquire(short, "http://box/picon/c.png"); err == nil {
		t.Fatal("expected third acquire to time out")
	}

	// A different host has its own slots.
	r3, err := sem.Acquire(ctx, "http://other/picon/c.png")
	if err != nil {
		t.Fatalf("other host: %v", err)
	}
	r3()

	r1()
	r4, err := sem.Acquire(ctx, "http://box/picon/d.png")
	if err != nil {
		t.Fatalf("after release: %v", err)
	}
	r4()
	r2()
}

func TestNewHostSemaphore_minimumOne(t *testing.T) {
	if got := NewHostSemaphore(0).Limit(); got != 1 {
		t.Errorf("Limit() = %d, want 1", got)
	}
}
