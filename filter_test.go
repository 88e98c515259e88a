package rawzip

import (
	"errors"
	"testing"

	"github.com/woozymasta/pathrules"
)

func TestEntryFilter_Rules(t *testing.T) {
	t.Parallel()

	filter, err := NewEntryFilter(FilterOptions{
		Rules: []pathrules.Rule{
			{Action: pathrules.ActionInclude, Pattern: "scripts/**"},
			{Action: pathrules.ActionExclude, Pattern: "scripts/tmp/**"},
		},
		MatcherOptions: pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		},
	})
	if err != nil {
		t.Fatalf("NewEntryFilter: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{path: "scripts/init.c", want: true},
		{path: "SCRIPTS/Init.c", want: true},
		{path: "scripts/tmp/cache.bin", want: false},
		{path: "textures/ground.paa", want: false},
		{path: "", want: false},
	}

	for _, tc := range cases {
		if got := filter.Match(tc.path, 1); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestEntryFilter_NormalizesPatterns(t *testing.T) {
	t.Parallel()

	filter, err := NewEntryFilter(FilterOptions{
		Rules: []pathrules.Rule{
			{Action: pathrules.ActionInclude, Pattern: `\docs\**`},
			{Action: pathrules.ActionInclude, Pattern: "   "},
		},
		MatcherOptions: pathrules.MatcherOptions{
			DefaultAction: pathrules.ActionExclude,
		},
	})
	if err != nil {
		t.Fatalf("NewEntryFilter: %v", err)
	}

	if !filter.Match(`docs\manual.txt`, 1) {
		t.Error("backslash pattern did not match backslash path")
	}
	if filter.Match("other/manual.txt", 1) {
		t.Error("unrelated path matched")
	}
}

func TestEntryFilter_InvalidRule(t *testing.T) {
	t.Parallel()

	_, err := NewEntryFilter(FilterOptions{
		Rules: []pathrules.Rule{
			{Action: pathrules.ActionUnknown, Pattern: "*"},
		},
	})
	if !errors.Is(err, ErrInvalidFilterPattern) {
		t.Fatalf("err = %v, want ErrInvalidFilterPattern", err)
	}
}

func TestEntryFilter_MinUncompressedSize(t *testing.T) {
	t.Parallel()

	filter, err := NewEntryFilter(FilterOptions{MinUncompressedSize: 100})
	if err != nil {
		t.Fatalf("NewEntryFilter: %v", err)
	}

	if filter.Match("small.bin", 99) {
		t.Error("entry below the size floor matched")
	}
	if !filter.Match("large.bin", 100) {
		t.Error("entry at the size floor rejected")
	}
}

func TestEntryFilter_ASCIIOnly(t *testing.T) {
	t.Parallel()

	filter, err := NewEntryFilter(FilterOptions{ASCIIOnly: true})
	if err != nil {
		t.Fatalf("NewEntryFilter: %v", err)
	}

	if !filter.Match("plain.txt", 0) {
		t.Error("ASCII path rejected")
	}
	if filter.Match("przykład.txt", 0) {
		t.Error("non-ASCII path matched")
	}
}

func TestEntryFilter_EmptyMatchesAll(t *testing.T) {
	t.Parallel()

	filter, err := NewEntryFilter(FilterOptions{})
	if err != nil {
		t.Fatalf("NewEntryFilter: %v", err)
	}

	if !filter.Match("anything/at/all", 0) {
		t.Error("empty filter rejected a path")
	}

	var nilFilter *EntryFilter
	if !nilFilter.Match("anything", 0) {
		t.Error("nil filter rejected a path")
	}
}

func TestEntryFilter_MatchEntry(t *testing.T) {
	t.Parallel()

	filter, err := NewEntryFilter(FilterOptions{MinUncompressedSize: 10})
	if err != nil {
		t.Fatalf("NewEntryFilter: %v", err)
	}

	entry := Entry{Name: FilePath("data.bin"), UncompressedSize: 20}
	if !filter.MatchEntry(&entry) {
		t.Error("entry above the floor rejected")
	}

	entry.UncompressedSize = 5
	if filter.MatchEntry(&entry) {
		t.Error("entry below the floor matched")
	}
}
