package types

import "testing"

func TestMarker_Kinds(t *testing.T) {
	tests := []struct {
		name   string
		marker Marker
		start  bool
		middle bool
		end    bool
	}{
		{"zero is start", MarkerStart, true, false, false},
		{"minus one is end", MarkerEnd, false, false, true},
		{"one is middle", Marker(1), false, true, false},
		{"large value is middle", Marker(9999), false, true, false},
		{"negative other than -1 is middle", Marker(-7), false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.marker.IsStart(); got != tt.start {
				t.Errorf("IsStart() = %v, want %v", got, tt.start)
			}
			if got := tt.marker.IsMiddle(); got != tt.middle {
				t.Errorf("IsMiddle() = %v, want %v", got, tt.middle)
			}
			if got := tt.marker.IsEnd(); got != tt.end {
				t.Errorf("IsEnd() = %v, want %v", got, tt.end)
			}
		})
	}
}

func TestMarker_String(t *testing.T) {
	if got := MarkerStart.String(); got != "start" {
		t.Errorf("MarkerStart.String() = %q, want %q", got, "start")
	}
	if got := MarkerEnd.String(); got != "end" {
		t.Errorf("MarkerEnd.String() = %q, want %q", got, "end")
	}
	if got := Marker(42).String(); got != "middle" {
		t.Errorf("Marker(42).String() = %q, want %q", got, "middle")
	}
}
