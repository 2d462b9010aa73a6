// Package normalize turns noisy provider titles into (artist, title) pairs.
//
// Cleanup is driven by ordered rule tables so new decoration patterns can be
// added and tested without touching the splitting logic.
package normalize

import (
	"regexp"
	"strings"

	"github.com/liuran001/TubeBot-Go/bot"
)

const (
	UnknownTrack  = "Unknown Track"
	UnknownArtist = "Unknown Artist"
)

// Rule is one textual transformation applied to a raw title.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// DecorationRules are applied in order to the raw title.
var DecorationRules = []Rule{
	{
		Name:    "bracketed-marker",
		Pattern: regexp.MustCompile(`(?i)\s*[\(\[][^\(\)\[\]]*\b(?:official|video|audio|lyrics?|visuali[sz]er|hd|hq|4k|mv)\b[^\(\)\[\]]*[\)\]]`),
	},
	{
		Name:    "official-suffix",
		Pattern: regexp.MustCompile(`(?i)\s*[-|:]?\s*\bofficial\s+(?:music\s+|lyric\s+)?(?:video|audio|visuali[sz]er)\s*$`),
	},
	{
		Name:    "video-suffix",
		Pattern: regexp.MustCompile(`(?i)\s*[-|]?\s*\b(?:music|lyric)\s+video\s*$`),
	},
	{
		Name:    "lyrics-suffix",
		Pattern: regexp.MustCompile(`(?i)\s*[-|]?\s*\blyrics?\s*$`),
	},
	{
		Name:    "quality-suffix",
		Pattern: regexp.MustCompile(`(?i)\s*[-|]?\s*\b(?:hd|hq|4k)\s*$`),
	},
	{
		Name:    "bracketed-year",
		Pattern: regexp.MustCompile(`\s*[\(\[]\s*(?:19|20)\d{2}\s*[\)\]]\s*$`),
	},
	{
		// A bare year right after a separator is kept: "Prince - 1999" is a title.
		Name:    "trailing-year",
		Pattern: regexp.MustCompile(`([^\s\-–—|])\s+(?:19|20)\d{2}\s*$`),
		Replace: "$1",
	},
}

// ChannelRules strip auto-generated channel markers from an artist name.
var ChannelRules = []Rule{
	{Name: "topic", Pattern: regexp.MustCompile(`(?i)\s*-\s*topic\s*$`)},
	{Name: "vevo", Pattern: regexp.MustCompile(`(?i)(\S)vevo\s*$`), Replace: "$1"},
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	// Hyphens need surrounding spaces so names like "Jay-Z" survive; dashes do not.
	separator = regexp.MustCompile(`\s+-\s+|\s*[–—]\s*`)
)

const danglingSeparators = " -–—|:·"

// Normalize derives the artist and title of a track from its raw title and uploader.
func Normalize(rawTitle, uploader string) bot.NormalizedTitle {
	cleaned := Clean(rawTitle)

	var artist, title string
	if parts := separator.Split(cleaned, -1); len(parts) == 2 && strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != "" {
		artist = StripChannel(parts[0])
		title = strings.Trim(parts[1], danglingSeparators)
	} else {
		artist = StripChannel(uploader)
		title = cleaned
	}

	if title == "" {
		title = UnknownTrack
	}
	if artist == "" {
		artist = UnknownArtist
	}
	return bot.NormalizedTitle{Artist: artist, Title: title}
}

// Clean applies DecorationRules until the title stops changing, then tidies whitespace.
func Clean(raw string) string {
	s := collapse(raw)
	for pass := 0; pass < 4; pass++ {
		before := s
		s = apply(DecorationRules, s)
		s = collapse(s)
		if s == before {
			break
		}
	}
	return s
}

// StripChannel removes channel markers from an uploader or artist name.
func StripChannel(name string) string {
	return collapse(apply(ChannelRules, collapse(name)))
}

func apply(rules []Rule, s string) string {
	for _, rule := range rules {
		s = rule.Pattern.ReplaceAllString(s, rule.Replace)
	}
	return s
}

func collapse(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	return strings.Trim(s, danglingSeparators)
}
