package reactor

import (
	"testing"
	"time"
)

func TestPostRunsInOrder(t *testing.T) {
	r := New(8)
	defer r.Stop()

	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		r.Post(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run in time")
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("expect strict FIFO order, got %v", order)
		}
	}
}

func TestPostAfterStopDoesNotBlock(t *testing.T) {
	r := New(1)
	r.Stop()

	done := make(chan struct{})
	go func() {
		r.Post(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked after Stop")
	}
}
