package textutil

import "testing"

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"  Summer\tHoliday \n 2024 ": "Summer Holiday 2024",
		"Line\x00Break\x1b[31m":      "LineBreak[31m",
		"zero\u200bwidth":            "zerowidth",
		"\n\t ":                      "",
		"Café déjà vu":               "Café déjà vu",
	}
	for in, want := range cases {
		if got := CleanTitle(in); got != want {
			t.Errorf("CleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
	// "é" is two bytes; cutting inside it must back off to the rune start.
	if got := Truncate("aé", 2); got != "a" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("anything", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
