package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a []string stored as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// Contains reports whether s is a member of the list.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Article represents a row in the 'articles' table. One logical collection
// per source shares this table, scoped by the Source column with a
// UNIQUE(source, link) constraint.
type Article struct {
	ID                        int64          `db:"id" json:"id"`
	Source                    string         `db:"source" json:"source"`
	Title                     string         `db:"title" json:"title"`
	Link                      string         `db:"link" json:"link"`
	Description               sql.NullString `db:"description" json:"description"`
	ImageURL                  sql.NullString `db:"image_url" json:"imageUrl"`
	Content                   sql.NullString `db:"content" json:"content"`
	PubDate                   time.Time      `db:"pub_date" json:"pubDate"`
	Categories                StringList     `db:"categories" json:"categories"`
	IsCurrentAffair           bool           `db:"is_current_affair" json:"isCurrentAffair"`
	CurrentAffairsCategory    string         `db:"current_affairs_category" json:"currentAffairsCategory"`
	QuestionsGenerationFailed bool           `db:"questions_generation_failed" json:"questionsGenerationFailed"`
	LastGeneratedQuestionsAt  sql.NullTime   `db:"last_generated_questions_at" json:"lastGeneratedQuestionsAt"`
	CreatedAt                 time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt                 time.Time      `db:"updated_at" json:"updatedAt"`
}

// NewArticle creates a new Article with default values.
func NewArticle(source string) *Article {
	now := time.Now().UTC()
	return &Article{
		Source:                 source,
		Categories:             StringList{CategoryGeneral},
		CurrentAffairsCategory: CategoryGeneral,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}
