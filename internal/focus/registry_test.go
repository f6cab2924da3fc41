package focus

import "testing"

func TestRegistryFocus(t *testing.T) {
	r := NewRegistry()
	if r.IsFocused(42) {
		t.Error("nothing focused yet, IsFocused(42) = true")
	}
	if r.Current() != 0 {
		t.Errorf("Current() = %d, want 0", r.Current())
	}

	r.Set(42)
	if !r.IsFocused(42) {
		t.Error("IsFocused(42) = false after Set(42)")
	}
	if r.IsFocused(7) {
		t.Error("IsFocused(7) = true, only 42 is focused")
	}

	r.Set(7)
	if r.IsFocused(42) {
		t.Error("IsFocused(42) = true after focus moved to 7")
	}
	if !r.IsFocused(7) {
		t.Error("IsFocused(7) = false after Set(7)")
	}

	r.Clear()
	if r.IsFocused(7) || r.Current() != 0 {
		t.Error("focus survived Clear()")
	}
}
