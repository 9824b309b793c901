package transform

import (
	"strings"
	"unicode"
)

// CategoryMusic is the only category that carries a genre.
const CategoryMusic = "Music"

type keywordRule struct {
	label    string
	keywords []string
}

// Rules are checked in order; on equal scores the earlier rule wins.
var categoryRules = []keywordRule{
	{CategoryMusic, []string{
		"concert", "live music", "band", "tour", "symphony", "orchestra", "songwriter",
		"songwriters", "album", "acoustic", "singer", "opry", "ryman", "bluebird",
		"station inn", "exit in", "honky tonk", "jam", "gig", "showcase",
	}},
	{"Comedy", []string{"comedy", "comedian", "stand up", "standup", "improv", "roast"}},
	{"Theater", []string{"theatre", "theater", "musical", "broadway", "play", "opera", "ballet", "tpac"}},
	{"Sports", []string{
		"predators", "titans", "sounds", "nashville sc", "game", "vs", "match",
		"tournament", "race", "marathon", "5k", "hockey", "football", "soccer", "baseball",
	}},
	{"Food & Drink", []string{
		"food", "tasting", "wine", "beer", "brewery", "restaurant", "dinner", "brunch",
		"cocktail", "bbq", "barbecue", "hot chicken", "chef",
	}},
	{"Arts", []string{"art", "arts", "gallery", "exhibit", "exhibition", "museum", "craft", "painting"}},
	{"Family", []string{"kids", "family", "children", "zoo", "storytime"}},
	{"Outdoors", []string{"park", "hike", "trail", "garden", "outdoor", "river", "greenway"}},
	{"Nightlife", []string{"bar", "club", "party", "nightlife", "karaoke", "dance night"}},
	{"Community", []string{"festival", "market", "fair", "parade", "meetup", "volunteer", "fundraiser"}},
}

// Genre keywords also count toward the Music category.
var genreRules = []keywordRule{
	{"Bluegrass", []string{"bluegrass", "banjo"}},
	{"Americana", []string{"americana", "folk", "roots"}},
	{"Country", []string{"country", "honky tonk", "opry", "nashville sound"}},
	{"Jazz", []string{"jazz", "swing", "bebop"}},
	{"Blues", []string{"blues"}},
	{"Rock", []string{"rock", "punk", "metal", "indie", "grunge"}},
	{"Hip-Hop", []string{"hip hop", "rap"}},
	{"Electronic", []string{"edm", "electronic", "techno", "house music", "dj"}},
	{"Classical", []string{"classical", "symphony", "orchestra", "chamber"}},
	{"Gospel", []string{"gospel", "worship", "choir"}},
	{"Pop", []string{"pop"}},
}

// Classifier assigns a category and, for music, a genre from free text.
// A match in the name weighs twice as much as one in the description or
// venue.
type Classifier struct {
	categories []keywordRule
	genres     []keywordRule
}

// NewClassifier creates a classifier with the built-in keyword rules.
func NewClassifier() *Classifier {
	return &Classifier{categories: categoryRules, genres: genreRules}
}

// Classify returns ("", "") when nothing matches.
func (c *Classifier) Classify(name, description, venue string) (category, genre string) {
	nameText := tokenize(name)
	otherText := tokenize(description + " " + venue)

	best := 0
	for _, rule := range c.categories {
		score := 2*countMatches(nameText, rule.keywords) + countMatches(otherText, rule.keywords)
		if score > best {
			best = score
			category = rule.label
		}
	}

	genreText := nameText + otherText
	for _, rule := range c.genres {
		if countMatches(genreText, rule.keywords) > 0 {
			genre = rule.label
			break
		}
	}

	if genre != "" && category == "" {
		category = CategoryMusic
	}
	if category != CategoryMusic {
		genre = ""
	}
	return category, genre
}

// tokenize lower-cases s and reduces it to space-separated words with a
// leading and trailing space, so keywords match on word boundaries.
func tokenize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	if !lastSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			n++
		}
	}
	return n
}
