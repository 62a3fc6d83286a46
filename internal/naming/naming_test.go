package naming

import "testing"

func TestParseTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want Title
	}{
		{raw: "EN - The Matrix (1999) [4K]", want: Title{Name: "The Matrix", Year: 1999, Version: "4K"}},
		{raw: "The.Matrix.1999.1080p.WEB-DL", want: Title{Name: "The Matrix", Year: 1999, Version: "1080p"}},
		{raw: "|FR| Amélie (2001) MULTI", want: Title{Name: "Amélie", Year: 2001, Version: "MULTI"}},
		{raw: "1917", want: Title{Name: "1917"}},
		{raw: "1917 (2019)", want: Title{Name: "1917", Year: 2019}},
		{raw: "Mission: Impossible - Fallout (2018)", want: Title{Name: "Mission: Impossible - Fallout", Year: 2018}},
		{raw: "Dune Part Two 2024 - 4K", want: Title{Name: "Dune Part Two", Year: 2024, Version: "4K"}},
		{raw: "Breaking Bad", want: Title{Name: "Breaking Bad"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseTitle(tt.raw); got != tt.want {
				t.Fatalf("ParseTitle(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRulesInIsolation(t *testing.T) {
	tests := []struct {
		rule Rule
		in   string
		want string
	}{
		{rule: DefaultRules[0], in: "[DE] Das Boot", want: "Das Boot"},
		{rule: DefaultRules[0], in: "AC-DC Live", want: "AC-DC Live"},
		{rule: DefaultRules[1], in: "Mr. Robot", want: "Mr. Robot"},
		{rule: DefaultRules[1], in: "Mr_Robot.S01", want: "Mr Robot S01"},
		{rule: DefaultRules[2], in: "Heat (1995) (MULTI VOSTFR)", want: "Heat (1995)  "},
		{rule: DefaultRules[2], in: "Heat (Director's Cut)", want: "Heat (Director's Cut)"},
		{rule: DefaultRules[3], in: "Heat HEVC x265", want: "Heat"},
		{rule: DefaultRules[3], in: "HD", want: "HD"},
	}
	for _, tt := range tests {
		if got := tt.rule.Apply(tt.in); got != tt.want {
			t.Errorf("%s(%q) = %q, want %q", tt.rule.Name, tt.in, got, tt.want)
		}
	}
}

func TestFolderNameAndBaseKey(t *testing.T) {
	folder := FolderName("Alien", 1979, IDKindTMDB, 348)
	if folder != "Alien (1979) [tmdbid-348]" {
		t.Fatalf("unexpected folder %q", folder)
	}
	if FolderName("Alien", 1979, IDKindTMDB, 0) != "Alien (1979)" {
		t.Fatal("expected no suffix without an id")
	}
	if got := BaseKey(folder); got != "alien (1979)" {
		t.Fatalf("BaseKey = %q", got)
	}
	if BaseKey("Alien (1979)") != BaseKey(folder) {
		t.Fatal("suffix must not affect the base key")
	}
	kind, id, ok := FolderID(folder)
	if !ok || kind != IDKindTMDB || id != 348 {
		t.Fatalf("FolderID = %q %d %v", kind, id, ok)
	}
	if _, _, ok := FolderID("Alien (1979)"); ok {
		t.Fatal("expected no id")
	}
}

func TestFileNames(t *testing.T) {
	if got := MovieFileName("Dune (2021)", ""); got != "Dune (2021).strm" {
		t.Fatalf("MovieFileName = %q", got)
	}
	if got := MovieFileName("Dune (2021)", "4K HDR"); got != "Dune (2021) - 4K HDR.strm" {
		t.Fatalf("MovieFileName = %q", got)
	}
	if got := EpisodeFileName("Dark (2017)", 1, 2); got != "Dark (2017) S01E02.strm" {
		t.Fatalf("EpisodeFileName = %q", got)
	}
	if SeasonFolder(3) != "Season 3" {
		t.Fatal("unexpected season folder")
	}
}

func TestAmbiguousTagWordsNeedCapitals(t *testing.T) {
	if got := ParseTitle("Stephen King's It"); got.Name != "Stephen King's It" {
		t.Fatalf("lowercase word treated as tag: %+v", got)
	}
	if got := ParseTitle("Heat (1995) IT"); got.Name != "Heat" || got.Year != 1995 {
		t.Fatalf("capital language tag not stripped: %+v", got)
	}
}
