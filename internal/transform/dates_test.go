package transform

import "testing"

func TestStandardizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-03-14", "2025-03-14T00:00:00Z"},
		{"2025-03-14 19:30", "2025-03-14T19:30:00Z"},
		{"2025-03-14T19:30:00-05:00", "2025-03-15T00:30:00Z"},
		{"Fri, 14 Mar 2025 19:30:00 -0500", "2025-03-15T00:30:00Z"},
		{"Sat, 01 Mar 2025 19:00:00 CST", "2025-03-02T01:00:00Z"},
		{"Sat, 05 Jul 2025 19:00:00 CDT", "2025-07-06T00:00:00Z"},
		{"Sat, 01 Mar 2025 19:00:00 EST", "2025-03-02T00:00:00Z"},
		{"Sat, 01 Mar 2025 19:00:00 GMT", "2025-03-01T19:00:00Z"},
		{"03/14/2025", "2025-03-14T00:00:00Z"},
		{"March 14, 2025", "2025-03-14T00:00:00Z"},
		{"March 14th, 2025 at 7:30 PM", "2025-03-14T19:30:00Z"},
		{"Mar 14, 2025 7:30 pm", "2025-03-14T19:30:00Z"},
		{"Friday, March 14, 2025", "2025-03-14T00:00:00Z"},
		{"  March   14,  2025 ", "2025-03-14T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := StandardizeDate(tt.in)
			if err != nil {
				t.Fatalf("StandardizeDate(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("StandardizeDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStandardizeDateRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "Sometime next spring", "TBA", "Sat, 01 Mar 2025 19:00:00 XYZ"} {
		if got, err := StandardizeDate(in); err == nil {
			t.Errorf("StandardizeDate(%q) = %q, want error", in, got)
		}
	}
}

func TestStandardizeDateSortsAcrossOffsets(t *testing.T) {
	later, err := StandardizeDate("2025-03-01T20:00:00-06:00")
	if err != nil {
		t.Fatal(err)
	}
	earlier, err := StandardizeDate("2025-03-01T23:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if !(earlier < later) {
		t.Errorf("text order %q < %q should follow time order", earlier, later)
	}
}
