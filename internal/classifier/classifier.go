// Package classifier assigns topic categories to articles by literal keyword
// matching against a fixed, versioned keyword table.
package classifier

import (
	"sort"
	"strings"

	"gpress/aggregator/internal/models"
)

// TableVersion identifies the keyword table below. Bump it whenever the
// table changes so stored categorizations can be traced to a table revision.
const TableVersion = 1

// rule maps a category label to the keyword phrases that trigger it. A
// category is assigned when any of its keywords is a substring of the
// lowercased title+description text.
type rule struct {
	category string
	keywords []string
}

// keywordTable is checked in order; assignment order determines which
// category becomes the current-affairs category when several match.
var keywordTable = []rule{
	{"Polity & Governance", []string{"election", "government", "parliament", "policy"}},
	{"Economy", []string{"economy", "finance", "bank", "budget", "market"}},
	{"Environment & Ecology", []string{"environment", "climate", "pollution", "conservation"}},
	{"Science & Technology", []string{"science", "technology", "research", "discovery"}},
	{"International Relations", []string{"international", "diplomacy", "un ", "global"}},
	{"Art & Culture", []string{"art", "culture", "festival", "music"}},
	{"History", []string{"history", "historical", "ancient"}},
	{"Social Issues", []string{"social", "community", "rights", "gender"}},
	{"Defence & Security", []string{"defence", "security", "military", "army", "navy", "air force"}},
	{"Awards, Persons & Places in News", []string{"award", "honor", "person in news", "place in news"}},
	{"World", []string{"world"}},
	{"National", []string{"national", "india"}},
	{"Sports", []string{"sport", "game", "match", "olympics"}},
}

// Classify maps an article's title and description to a set of categories
// from the canonical vocabulary. A missing description is treated as empty.
// Matches outside the vocabulary are discarded; an empty result falls back
// to {"General"}.
func Classify(title, description string) models.StringList {
	text := strings.ToLower(title + " " + description)

	var categories models.StringList
	for _, r := range keywordTable {
		if !models.ValidCategory(r.category) {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				categories = append(categories, r.category)
				break
			}
		}
	}

	if len(categories) == 0 {
		return models.StringList{models.CategoryGeneral}
	}
	return categories
}

// Vocabulary returns the category labels the table can produce, sorted.
func Vocabulary() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range keywordTable {
		if models.ValidCategory(r.category) && !seen[r.category] {
			seen[r.category] = true
			out = append(out, r.category)
		}
	}
	sort.Strings(out)
	return out
}
