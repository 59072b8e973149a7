package topic

import "testing"

func TestExactMatch(t *testing.T) {
	pattern := New("impl.done")
	target := New("impl.done")
	if !pattern.Matches(target) {
		t.Fatalf("expected %q to match %q", pattern, target)
	}
}

func TestNoMatch(t *testing.T) {
	pattern := New("impl.done")
	target := New("review.done")
	if pattern.Matches(target) {
		t.Fatalf("expected %q not to match %q", pattern, target)
	}
}

func TestWildcardSuffix(t *testing.T) {
	pattern := New("impl.*")
	if !pattern.Matches(New("impl.done")) {
		t.Fatal("expected impl.* to match impl.done")
	}
	if !pattern.Matches(New("impl.started")) {
		t.Fatal("expected impl.* to match impl.started")
	}
	if pattern.Matches(New("review.done")) {
		t.Fatal("expected impl.* not to match review.done")
	}
}

func TestWildcardPrefix(t *testing.T) {
	pattern := New("*.done")
	if !pattern.Matches(New("impl.done")) {
		t.Fatal("expected *.done to match impl.done")
	}
	if !pattern.Matches(New("review.done")) {
		t.Fatal("expected *.done to match review.done")
	}
	if pattern.Matches(New("impl.started")) {
		t.Fatal("expected *.done not to match impl.started")
	}
}

func TestGlobalWildcard(t *testing.T) {
	pattern := New("*")
	if !pattern.Matches(New("impl.done")) {
		t.Fatal("expected * to match impl.done")
	}
	if !pattern.Matches(New("anything")) {
		t.Fatal("expected * to match anything")
	}
	if !pattern.IsGlobalWildcard() {
		t.Fatal("expected * to report as global wildcard")
	}
}

func TestLengthMismatch(t *testing.T) {
	pattern := New("impl.*")
	if pattern.Matches(New("impl.sub.done")) {
		t.Fatal("expected impl.* not to match impl.sub.done due to segment count")
	}
}
