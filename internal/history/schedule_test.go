package history

import (
	"reflect"
	"testing"
)

func TestSchedule(t *testing.T) {
	got, err := Schedule(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{100, 102, 104, 105}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("schedule mismatch: %v != %v", got, want)
	}
}

func TestScheduleAligned(t *testing.T) {
	got, err := Schedule(10, 30, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{10, 20, 30}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("schedule mismatch: %v != %v", got, want)
	}
}

func TestScheduleSingle(t *testing.T) {
	got, err := Schedule(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []uint64{5}) {
		t.Fatalf("schedule mismatch: %v", got)
	}
}

func TestScheduleNearMaxUint64(t *testing.T) {
	const max = ^uint64(0)
	got, err := Schedule(max-3, max, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{max - 3, max - 1, max}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("schedule mismatch: %v != %v", got, want)
	}
}

func TestScheduleInvalid(t *testing.T) {
	if _, err := Schedule(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := Schedule(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero step")
	}
}

func TestAfter(t *testing.T) {
	blocks := []uint64{10, 20, 30}
	if got := After(blocks, 20); !reflect.DeepEqual(got, []uint64{30}) {
		t.Fatalf("after mismatch: %v", got)
	}
	if got := After(blocks, 5); !reflect.DeepEqual(got, blocks) {
		t.Fatalf("after mismatch: %v", got)
	}
	if got := After(blocks, 30); len(got) != 0 {
		t.Fatalf("expected nothing left, got %v", got)
	}
}
