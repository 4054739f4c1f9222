package services

import "testing"

func TestResolveRoom(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "Ground floor 10", raw: "10", want: "G110"},
		{name: "Ground floor 11", raw: "11", want: "G111"},
		{name: "Ground floor 12", raw: "12", want: "G112"},
		{name: "Ground floor 20", raw: "20", want: "G120"},
		{name: "Ground floor 21", raw: "21", want: "G121"},
		{name: "Unmapped two characters", raw: "99", want: "Unknown Room (99)"},
		{name: "Three characters keep floor and number", raw: "410", want: "410"},
		{name: "Three letters", raw: "abc", want: "abc"},
		{name: "Single character", raw: "7", want: "Room 7"},
		{name: "Empty payload", raw: "", want: "Room "},
		{name: "Long payload", raw: "LAB-42", want: "Room LAB-42"},
		{name: "Two runes, four bytes", raw: "éé", want: "Unknown Room (éé)"},
		{name: "Three runes, multibyte", raw: "1éé", want: "1éé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRoom(tt.raw); got != tt.want {
				t.Errorf("ResolveRoom(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveRoomDeterministic(t *testing.T) {
	for _, raw := range []string{"10", "99", "305", "x"} {
		if ResolveRoom(raw) != ResolveRoom(raw) {
			t.Errorf("ResolveRoom(%q) is not stable", raw)
		}
	}
}
