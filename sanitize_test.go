package rawzip

import (
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{raw: "docs/readme.txt", want: "docs/readme.txt"},
		{raw: "con.txt", want: "_con.txt"},
		{raw: "LPT1", want: "_LPT1"},
		{raw: "../x", want: "_/x"},
		{raw: "a<b>c.txt", want: "a_b_c.txt"},
		{raw: "name...", want: "name"},
		{raw: "trailing.   ", want: "trailing"},
		{raw: "bad\x01name.txt", want: "bad_name.txt"},
		{raw: `dir\sub\file`, want: "dir/sub/file"},
		{raw: "quoted\"name", want: "quoted_name"},
		{raw: "", want: ""},
		{raw: "...", want: "_"},
	}

	for _, tc := range cases {
		got, err := SanitizePath(tc.raw)
		if err != nil {
			t.Errorf("SanitizePath(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("SanitizePath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSanitizePath_LongSegmentShortened(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 300) + ".txt"

	got, err := SanitizePath(long)
	if err != nil {
		t.Fatalf("SanitizePath: %v", err)
	}
	if len(got) != maxSegmentBytes {
		t.Fatalf("len = %d, want %d", len(got), maxSegmentBytes)
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Fatalf("shortened segment %q lost its extension", got)
	}
	if !strings.Contains(got, "~") {
		t.Fatalf("shortened segment %q lacks checksum suffix", got)
	}

	// Two long names differing only past the cut point stay distinct.
	other, err := SanitizePath(strings.Repeat("a", 299) + "b.txt")
	if err != nil {
		t.Fatalf("SanitizePath: %v", err)
	}
	if other == got {
		t.Fatal("distinct long names shortened to the same result")
	}
}

func TestSanitizedExtractNames_Collisions(t *testing.T) {
	t.Parallel()

	items := []extractWorkItem{
		{name: "A.txt"},
		{name: "a.txt"},
		{name: "a.txt"},
		{name: "docs/readme.md"},
	}

	out, err := sanitizedExtractNames(items)
	if err != nil {
		t.Fatalf("sanitizedExtractNames: %v", err)
	}

	if out[0].name != "A.txt" {
		t.Errorf("first name = %q", out[0].name)
	}
	if out[1].name != "a~2.txt" {
		t.Errorf("second name = %q, want a~2.txt", out[1].name)
	}
	if out[2].name != "a~3.txt" {
		t.Errorf("third name = %q, want a~3.txt", out[2].name)
	}
	if out[3].name != "docs/readme.md" {
		t.Errorf("fourth name = %q", out[3].name)
	}
}

func TestSanitizedExtractNames_TraversalRewritten(t *testing.T) {
	t.Parallel()

	items := []extractWorkItem{{name: "../../etc/passwd"}}

	out, err := sanitizedExtractNames(items)
	if err != nil {
		t.Fatalf("sanitizedExtractNames: %v", err)
	}
	if out[0].name != "_/_/etc/passwd" {
		t.Fatalf("name = %q, want _/_/etc/passwd", out[0].name)
	}
}

func TestIsReservedWindowsName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want bool
	}{
		{name: "con", want: true},
		{name: "CON", want: true},
		{name: "con.", want: true},
		{name: "aux.txt", want: true},
		{name: "Prn", want: true},
		{name: "lpt9", want: true},
		{name: "com5.log", want: true},
		{name: "console", want: false},
		{name: "com0", want: false},
		{name: "lpt10", want: false},
		{name: "", want: false},
	}

	for _, tc := range cases {
		if got := isReservedWindowsName(tc.name); got != tc.want {
			t.Errorf("isReservedWindowsName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
