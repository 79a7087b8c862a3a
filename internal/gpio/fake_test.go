package gpio

import (
	"errors"
	"testing"
)

func TestFakeOutputRecordsWrites(t *testing.T) {
	f := NewFakeOutput()

	if f.Value() {
		t.Error("unwritten output should read false")
	}

	for _, v := range []bool{true, false, true} {
		if err := f.Set(v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if f.WriteCount() != 3 {
		t.Errorf("expected 3 writes, got %d", f.WriteCount())
	}
	if !f.Value() {
		t.Error("expected last value true")
	}
}

func TestFakeOutputError(t *testing.T) {
	f := NewFakeOutput()
	f.SetError = errors.New("simulated error")

	err := f.Set(true)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if f.WriteCount() != 0 {
		t.Errorf("failed write should not be recorded, got %d", f.WriteCount())
	}
}

func TestFakeOutputClose(t *testing.T) {
	f := NewFakeOutput()

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeOutputReset(t *testing.T) {
	f := NewFakeOutput()
	f.Set(true)
	f.SetError = errors.New("x")
	f.Close()

	f.Reset()

	if f.WriteCount() != 0 || f.SetError != nil || f.Closed {
		t.Errorf("reset did not clear state: %+v", f)
	}
}
