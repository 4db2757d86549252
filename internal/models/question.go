package models

import "time"

// CategoryGeneral is the fallback category assigned when no keyword matches.
const CategoryGeneral = "General"

// Categories is the canonical vocabulary for article categories and the
// current-affairs category. Keyword matches outside this set are discarded.
var Categories = []string{
	"Polity & Governance",
	"Economy",
	"Environment & Ecology",
	"Science & Technology",
	"International Relations",
	"Art & Culture",
	"History",
	"Social Issues",
	"Defence & Security",
	"Awards, Persons & Places in News",
	"National",
	"Sports",
	"Miscellaneous",
	CategoryGeneral,
}

// ValidCategory reports whether name belongs to the canonical vocabulary.
func ValidCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Question represents a row in the 'questions' table. A question is owned by
// exactly one article; deleting the article deletes its questions.
type Question struct {
	ID                 int64      `db:"id" json:"id"`
	ArticleID          int64      `db:"article_id" json:"articleId"`
	ArticleSourceModel string     `db:"article_source_model" json:"articleSourceModel"`
	ArticleSource      string     `db:"article_source" json:"articleSource"`
	ArticleTitle       string     `db:"article_title" json:"articleTitle"`
	Question           string     `db:"question" json:"question"`
	Options            StringList `db:"options" json:"options"`
	CorrectAnswer      string     `db:"correct_answer" json:"correctAnswer"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}
