package fileconsumer

import "testing"

func TestMarkReportsFirstInsertOnly(t *testing.T) {
	s := New()

	if !s.Mark("a.go") {
		t.Fatal("first Mark of a.go should report true")
	}
	if s.Mark("a.go") {
		t.Fatal("second Mark of a.go should report false")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestResetClearsClaim(t *testing.T) {
	s := New()
	s.Mark("a.go")

	s.Reset("a.go")
	if s.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", s.Len())
	}
	if !s.Mark("a.go") {
		t.Fatal("Mark after Reset should report true again")
	}
}

func TestResetUnknownPathIsNoop(t *testing.T) {
	s := New()
	s.Reset("never-marked.go")
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestMarkDistinctPaths(t *testing.T) {
	s := New()
	s.Mark("a.go")
	s.Mark("b.go")
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}
