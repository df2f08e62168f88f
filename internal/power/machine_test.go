package power

import (
	"testing"
	"time"

	"bmo/internal/button"
)

func TestMachine_ToggleLaw(t *testing.T) {
	for n := 0; n <= 9; n++ {
		m := NewMachine()
		for i := 0; i < n; i++ {
			if _, ok := m.HandleEdge(button.Edge{Pressed: true, At: time.Unix(int64(i), 0)}); !ok {
				t.Fatalf("press %d produced no transition", i)
			}
		}
		want := Off
		if n%2 == 1 {
			want = On
		}
		if got := m.State(); got != want {
			t.Errorf("after %d presses state = %s, want %s", n, got, want)
		}
	}
}

func TestMachine_ReleaseIgnored(t *testing.T) {
	m := NewMachine()
	if _, ok := m.HandleEdge(button.Edge{Pressed: false}); ok {
		t.Fatal("release edge produced a transition")
	}
	if m.On() {
		t.Fatal("release edge changed state")
	}
}

func TestMachine_TransitionShape(t *testing.T) {
	m := NewMachine()
	at := time.Unix(42, 0)

	tr, _ := m.HandleEdge(button.Edge{Pressed: true, At: at})
	if !tr.Boot() || tr.From != Off || tr.To != On || !tr.At.Equal(at) {
		t.Errorf("first transition = %+v, want Off->On at %v", tr, at)
	}

	tr, _ = m.HandleEdge(button.Edge{Pressed: true, At: at})
	if tr.Boot() || tr.From != On || tr.To != Off {
		t.Errorf("second transition = %+v, want On->Off", tr)
	}
}

func TestMachine_Rollback(t *testing.T) {
	m := NewMachine()
	tr, _ := m.HandleEdge(button.Edge{Pressed: true})
	m.Rollback(tr)
	if m.On() {
		t.Fatal("rollback did not restore Off")
	}
}

func TestState_String(t *testing.T) {
	if Off.String() != "OFF" || On.String() != "ON" || State(7).String() != "UNKNOWN" {
		t.Error("unexpected State names")
	}
}
