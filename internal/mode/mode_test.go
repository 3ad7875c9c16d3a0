package mode

import "testing"

func TestPredicates(t *testing.T) {
	tests := []struct {
		mode           Mode
		readFromServer bool
		searchOnServer bool
		writeAllowed   bool
		deleteAllowed  bool
	}{
		{Offline, false, false, false, false},
		{Accelerated, false, false, true, false},
		{Online, false, true, true, false},
		{Refresh, true, true, true, false},
		{Destructive, true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.ReadsFromServer(); got != tt.readFromServer {
				t.Errorf("ReadsFromServer() = %v, want %v", got, tt.readFromServer)
			}
			if got := tt.mode.SearchesOnServer(); got != tt.searchOnServer {
				t.Errorf("SearchesOnServer() = %v, want %v", got, tt.searchOnServer)
			}
			if got := tt.mode.WriteAllowed(); got != tt.writeAllowed {
				t.Errorf("WriteAllowed() = %v, want %v", got, tt.writeAllowed)
			}
			if got := tt.mode.DeleteAllowed(); got != tt.deleteAllowed {
				t.Errorf("DeleteAllowed() = %v, want %v", got, tt.deleteAllowed)
			}
		})
	}
}

func TestValid(t *testing.T) {
	for _, m := range []Mode{Offline, Accelerated, Online, Refresh, Destructive} {
		if !Valid(m) {
			t.Errorf("Valid(%s) = false, want true", m)
		}
	}
	if Valid(Mode("bogus")) {
		t.Error("Valid(bogus) = true, want false")
	}
}

func TestGateSetModeExcludesBegin(t *testing.T) {
	g := NewGate(Online)
	if g.Current() != Online {
		t.Fatalf("Current() = %s, want online", g.Current())
	}

	m, done := g.Begin()
	if m != Online {
		t.Fatalf("Begin() snapshot = %s, want online", m)
	}
	done()

	g.SetMode(Destructive)
	if g.Current() != Destructive {
		t.Fatalf("Current() after SetMode = %s, want destructive", g.Current())
	}

	m2, done2 := g.Begin()
	defer done2()
	if m2 != Destructive {
		t.Errorf("Begin() snapshot after SetMode = %s, want destructive", m2)
	}
}
