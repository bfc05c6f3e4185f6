package layerdoc_test

import (
	"testing"

	"github.com/goliatone/go-layerdoc"
)

func TestGuardSkipsReentrantSection(t *testing.T) {
	var g layerdoc.Guard
	calls := 0
	var run func()
	run = func() {
		calls++
		if g.Do("section", run) {
			t.Fatalf("expected nested Do to be skipped")
		}
	}
	if !g.Do("section", run) {
		t.Fatalf("expected outer Do to run")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if g.Held("section") {
		t.Fatalf("expected section to be released")
	}
}

func TestGuardSectionsAreIndependent(t *testing.T) {
	var g layerdoc.Guard
	inner := false
	g.Do("outer", func() {
		inner = g.Do("inner", func() {})
		if !g.Held("outer") {
			t.Fatalf("expected outer to be held while running")
		}
	})
	if !inner {
		t.Fatalf("expected inner section to run")
	}
}

func TestGuardReleasesOnPanic(t *testing.T) {
	var g layerdoc.Guard
	func() {
		defer func() { _ = recover() }()
		g.Do("boom", func() { panic("boom") })
	}()
	if g.Held("boom") {
		t.Fatalf("expected section released after panic")
	}
}
