package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDeleteArticleCascadesToQuestions(t *testing.T) {
	db := openTestDB(t)

	res, err := db.Exec(
		`INSERT INTO articles (source, title, link, pub_date) VALUES (?, ?, ?, ?)`,
		"hindu", "Cascade check", "https://example.com/cascade", "2026-08-30 00:00:00",
	)
	require.NoError(t, err)
	articleID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec(
		`INSERT INTO questions (article_id, article_source_model, article_source, article_title, question, options, correct_answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		articleID, "TheHindu", "The Hindu", "Cascade check", "Gone with the parent?", `["Yes","No"]`, "Yes",
	)
	require.NoError(t, err)

	// Churn the pool so the delete can land on a fresh connection; the
	// constraint must hold on every connection, not just the first.
	for i := 0; i < 5; i++ {
		var one int
		require.NoError(t, db.Get(&one, "SELECT 1"))
	}

	_, err = db.Exec(`DELETE FROM articles WHERE id = ?`, articleID)
	require.NoError(t, err)

	var remaining int
	require.NoError(t, db.Get(&remaining, `SELECT COUNT(*) FROM questions WHERE article_id = ?`, articleID))
	assert.Zero(t, remaining)
}

func TestDanglingQuestionInsertRejected(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(
		`INSERT INTO questions (article_id, article_source_model, article_source, article_title, question, options, correct_answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		9999, "TheHindu", "The Hindu", "No such article", "Orphan?", `["Yes","No"]`, "Yes",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY constraint failed")
}
