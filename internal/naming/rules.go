package naming

import (
	"regexp"
	"strings"
)

// Rule is one independent cleanup transform applied to a raw provider title.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	providerPrefixPattern = regexp.MustCompile(`^\s*(?:\|[A-Za-z0-9 ]{1,6}\|\s*|\[[A-Za-z]{2,3}\]\s*|[A-Z]{2,3}(?:\s+[-|]\s+|:\s+|\|\s*))`)
	bracketTagPattern     = regexp.MustCompile(`[\[(]([^\[\]()]*)[\])]`)
	separatorPattern      = regexp.MustCompile(`[._]+`)
	dashRunPattern        = regexp.MustCompile(`\s*[-–—]\s*(?:[-–—]\s*)*$`)
	spacePattern          = regexp.MustCompile(`\s{2,}`)
	emptyBracketPattern   = regexp.MustCompile(`[\[(]\s*[\])]`)
)

// tagWords are quality, codec, and source markers providers glue onto
// titles. Matching is case-insensitive on whole words.
var tagWords = map[string]struct{}{
	"4k": {}, "uhd": {}, "fhd": {}, "2160p": {}, "1080p": {}, "720p": {}, "480p": {},
	"hdr": {}, "hdr10": {}, "atmos": {}, "3d": {},
	"hevc": {}, "x264": {}, "x265": {}, "h264": {}, "h265": {}, "avc": {}, "av1": {}, "aac": {}, "ac3": {}, "dts": {},
	"bluray": {}, "blu-ray": {}, "bdrip": {}, "brrip": {}, "web-dl": {}, "webdl": {}, "webrip": {}, "dvdrip": {}, "hdtv": {},
	"multi": {}, "multisub": {}, "vostfr": {}, "vost": {}, "subbed": {}, "dubbed": {}, "vf": {}, "vff": {},
}

// upperTagWords only count as tags when written in capitals, since they
// double as ordinary words ("It", "Cam", "De").
var upperTagWords = map[string]struct{}{
	"HD": {}, "SD": {}, "HQ": {}, "DV": {}, "TS": {}, "CAM": {}, "WEB": {}, "SUB": {}, "SUBS": {}, "DUB": {},
	"EN": {}, "ENG": {}, "FR": {}, "DE": {}, "GER": {}, "ES": {}, "ESP": {}, "IT": {}, "ITA": {}, "NL": {}, "PT": {}, "TR": {}, "AR": {}, "PL": {},
}

func isTag(word string) bool {
	if _, ok := tagWords[strings.ToLower(word)]; ok {
		return true
	}
	_, ok := upperTagWords[word]
	return ok
}

// versionWords are the tag words worth keeping as a version label so two
// sources of the same title can live side by side.
var versionWords = map[string]string{
	"4k": "4K", "uhd": "4K", "2160p": "4K", "1080p": "1080p", "720p": "720p", "fhd": "1080p",
	"hdr": "HDR", "hdr10": "HDR", "3d": "3D",
	"multi": "MULTI", "vostfr": "VOSTFR", "vf": "VF", "vff": "VF",
}

// DefaultRules is the ordered cleanup pipeline used by ParseTitle. Each rule
// is a pure function and may be tested or reordered on its own.
var DefaultRules = []Rule{
	{Name: "provider_prefix", Apply: StripProviderPrefix},
	{Name: "dotted_separators", Apply: NormalizeSeparators},
	{Name: "bracket_tags", Apply: StripBracketTags},
	{Name: "bare_tags", Apply: StripBareTags},
	{Name: "empty_brackets", Apply: func(s string) string { return emptyBracketPattern.ReplaceAllString(s, "") }},
	{Name: "trailing_dashes", Apply: func(s string) string { return dashRunPattern.ReplaceAllString(s, "") }},
	{Name: "whitespace", Apply: CollapseSpace},
}

// Apply runs rules in order.
func Apply(rules []Rule, s string) string {
	for _, rule := range rules {
		s = rule.Apply(s)
	}
	return s
}

// StripProviderPrefix removes list prefixes such as "EN - ", "|FR| ", or "[DE] ".
func StripProviderPrefix(s string) string {
	return providerPrefixPattern.ReplaceAllString(s, "")
}

// NormalizeSeparators turns dot or underscore separated names into spaced
// names. Names that already contain spaces are left alone so "Mr. Robot"
// keeps its dot.
func NormalizeSeparators(s string) string {
	if strings.Contains(strings.TrimSpace(s), " ") {
		return s
	}
	return separatorPattern.ReplaceAllString(s, " ")
}

// StripBracketTags drops bracketed groups made only of tag words, e.g.
// "[4K]" or "(MULTI VOSTFR)". Years and other bracketed text survive.
func StripBracketTags(s string) string {
	return bracketTagPattern.ReplaceAllStringFunc(s, func(group string) string {
		inner := group[1 : len(group)-1]
		if onlyTags(inner) {
			return " "
		}
		return group
	})
}

// StripBareTags drops tag words that trail the title outside brackets.
func StripBareTags(s string) string {
	words := strings.Fields(s)
	end := len(words)
	for end > 1 {
		w := strings.Trim(words[end-1], "-–—|,")
		if w == "" {
			end--
			continue
		}
		if !isTag(w) {
			break
		}
		end--
	}
	return strings.Join(words[:end], " ")
}

// CollapseSpace trims and collapses internal whitespace.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func onlyTags(inner string) bool {
	fields := strings.FieldsFunc(inner, func(r rune) bool { return r == ' ' || r == ',' || r == '/' || r == '|' || r == '+' })
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !isTag(f) {
			return false
		}
	}
	return true
}

// VersionLabel collects recognised version markers from a raw title in
// first-seen order, e.g. "Dune [4K] [MULTI]" yields "4K MULTI".
func VersionLabel(raw string) string {
	var labels []string
	seen := map[string]struct{}{}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '[' || r == ']' || r == '(' || r == ')' || r == '|' || r == ',' || r == '.' || r == '_'
	})
	for _, f := range fields {
		label, ok := versionWords[strings.ToLower(f)]
		if !ok {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return strings.Join(labels, " ")
}
