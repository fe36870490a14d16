package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestPanicError verifies message and unwrapping
// Given: Panic errors wrapping a string and an error value
// When: Error and Unwrap are called
// Then: The message names the value and only error values unwrap
func TestPanicError(t *testing.T) {
	// Arrange
	inner := errors.New("inner")
	plain := &PanicError{Value: "boom"}
	wrapped := &PanicError{Value: inner}

	// Assert
	if !strings.Contains(plain.Error(), "boom") {
		t.Errorf("Error() = %q, want it to mention boom", plain.Error())
	}
	if plain.Unwrap() != nil {
		t.Error("non-error panic value should not unwrap")
	}
	if !errors.Is(wrapped, inner) {
		t.Error("error panic value should unwrap")
	}
}

// TestWorkerInfo_Context verifies the worker info round trip
func TestWorkerInfo_Context(t *testing.T) {
	if _, ok := CurrentWorkerInfo(context.Background()); ok {
		t.Error("plain context should carry no worker info")
	}

	want := WorkerInfo{PoolID: "pool", WorkerID: 3, Thread: 1234}
	got, ok := CurrentWorkerInfo(WithWorkerInfo(context.Background(), want))
	if !ok {
		t.Fatal("worker info missing")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
