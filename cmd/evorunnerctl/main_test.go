package main

import (
	"context"
	"reflect"
	"testing"
)

func TestParseIntList(t *testing.T) {
	sizes, err := parseIntList("12, 6,3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(sizes, []int{12, 6, 3}) {
		t.Fatalf("unexpected sizes: %v", sizes)
	}

	if _, err := parseIntList("12,x"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseLockIndices(t *testing.T) {
	locks, err := parseLockIndices("3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(locks, []bool{false, false, false, true}) {
		t.Fatalf("unexpected locks: %v", locks)
	}

	locks, err = parseLockIndices("0,3")
	if err != nil {
		t.Fatalf("parse pair: %v", err)
	}
	if !reflect.DeepEqual(locks, []bool{true, false, false, true}) {
		t.Fatalf("unexpected locks: %v", locks)
	}

	if _, err := parseLockIndices("4"); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := parseLockIndices("-1"); err == nil {
		t.Fatal("expected negative index error")
	}
}

func TestFormatTopology(t *testing.T) {
	if got := formatTopology([]int{7, 10, 4}); got != "7-10-4" {
		t.Fatalf("unexpected topology: %s", got)
	}
}

func TestRunDispatchRejectsUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected unknown command error")
	}
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command error")
	}
}
