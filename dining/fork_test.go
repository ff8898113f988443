package dining

import "testing"

func TestForkLifecycle(t *testing.T) {
	var f Fork // zero value is Absent

	if f.Held() {
		t.Fatal("absent fork reported as held")
	}
	if err := f.Receive(); err != nil {
		t.Fatalf("receive on absent fork: %v", err)
	}
	if f.State() != Clean {
		t.Fatalf("fork after receive is %v, want CLEAN", f.State())
	}

	if err := f.NoteRequest(); err != nil {
		t.Fatalf("note request on held fork: %v", err)
	}
	if !f.Pending() {
		t.Fatal("deferred request not recorded")
	}

	if err := f.MarkUsed(); err != nil {
		t.Fatalf("mark used on held fork: %v", err)
	}
	if f.State() != Dirty {
		t.Fatalf("fork after use is %v, want DIRTY", f.State())
	}

	if err := f.Give(); err != nil {
		t.Fatalf("give on dirty fork: %v", err)
	}
	if f.State() != Absent {
		t.Fatalf("fork after give is %v, want ABSENT", f.State())
	}
	if f.Pending() {
		t.Fatal("give must clear the pending request")
	}
}

func TestGivePreconditions(t *testing.T) {
	var f Fork
	if err := f.Give(); err == nil {
		t.Error("give on an absent fork must fail")
	}

	f.state = Clean
	if err := f.Give(); err == nil {
		t.Error("give on a clean fork must fail, the request is deferred instead")
	}
}

func TestReceivePrecondition(t *testing.T) {
	f := Fork{state: Clean}
	if err := f.Receive(); err == nil {
		t.Error("receive on a held fork must fail")
	}
}

func TestNoteRequestPrecondition(t *testing.T) {
	var f Fork
	if err := f.NoteRequest(); err == nil {
		t.Error("nobody can be asked for a fork they do not hold")
	}
}

func TestMarkUsedPrecondition(t *testing.T) {
	var f Fork
	if err := f.MarkUsed(); err == nil {
		t.Error("mark used on an absent fork must fail")
	}
}
