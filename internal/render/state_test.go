package render

import "testing"

func TestState_EnterExit(t *testing.T) {
	st := NewState()

	if got := st.Enter(); got != 1 {
		t.Errorf("first Enter() = %d, want 1", got)
	}
	if got := st.Enter(); got != 2 {
		t.Errorf("second Enter() = %d, want 2", got)
	}
	st.Exit()
	st.Exit()
	if st.Indent != 0 {
		t.Errorf("Indent = %d after balanced enter/exit, want 0", st.Indent)
	}
}

func TestState_ExitAtZeroIsNoop(t *testing.T) {
	st := NewState()
	for i := 0; i < 5; i++ {
		st.Exit()
	}
	if st.Indent != 0 {
		t.Errorf("Indent = %d, want 0", st.Indent)
	}
	if got := st.Enter(); got != 1 {
		t.Errorf("Enter() after underflow = %d, want 1", got)
	}
}

func TestState_Timestamp(t *testing.T) {
	st := NewState()
	if _, seen := st.LastTimestamp(); seen {
		t.Fatal("fresh state must not have a last timestamp")
	}
	if st.Started() {
		t.Fatal("fresh state must not be started")
	}

	st.advance(42)
	last, seen := st.LastTimestamp()
	if !seen || last != 42 {
		t.Errorf("LastTimestamp() = %d, %v; want 42, true", last, seen)
	}
	if !st.Started() {
		t.Error("state should be started after advance")
	}
}
