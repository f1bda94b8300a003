package core

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "shorter than limit", in: "abc", max: 5, want: "abc"},
		{name: "exact limit", in: "abcde", max: 5, want: "abcde"},
		{name: "ascii prefix", in: "abcdef", max: 3, want: "abc"},
		{name: "multibyte runes kept whole", in: "héllo wörld", max: 4, want: "héll"},
		{name: "zero disables", in: "abc", max: 0, want: "abc"},
		{name: "empty", in: "", max: 3, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestTruncateDeterministic(t *testing.T) {
	in := "the same long input string"
	if Truncate(in, 8) != Truncate(in, 8) {
		t.Fatal("Truncate must be deterministic")
	}
}
