package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpress/aggregator/internal/models"
)

func newTestQuestion(articleID int64, text string) models.Question {
	return models.Question{
		ArticleID:          articleID,
		ArticleSourceModel: "TheHindu",
		ArticleSource:      "The Hindu",
		ArticleTitle:       "Test headline",
		Question:           text,
		Options:            models.StringList{"A", "B", "C", "D"},
		CorrectAnswer:      "A",
	}
}

func TestReplaceForArticleInsertsAndLists(t *testing.T) {
	db := testDB(t)
	articles := NewArticleStore(db, sourceByKey(t, "hindu"))
	questions := NewQuestionStore(db)
	ctx := context.Background()

	a := newTestArticle("hindu", "https://example.com/q1")
	require.NoError(t, articles.Insert(ctx, a))

	ids, err := questions.ReplaceForArticle(ctx, a.ID, []models.Question{
		newTestQuestion(a.ID, "First?"),
		newTestQuestion(a.ID, "Second?"),
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	stored, err := questions.ListByArticle(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "First?", stored[0].Question)
	assert.Equal(t, "Second?", stored[1].Question)
	assert.Equal(t, models.StringList{"A", "B", "C", "D"}, stored[0].Options)
	assert.Equal(t, "The Hindu", stored[0].ArticleSource)
}

func TestReplaceForArticleReplacesPriorSet(t *testing.T) {
	db := testDB(t)
	articles := NewArticleStore(db, sourceByKey(t, "hindu"))
	questions := NewQuestionStore(db)
	ctx := context.Background()

	a := newTestArticle("hindu", "https://example.com/q2")
	require.NoError(t, articles.Insert(ctx, a))

	_, err := questions.ReplaceForArticle(ctx, a.ID, []models.Question{
		newTestQuestion(a.ID, "Old question?"),
	})
	require.NoError(t, err)

	_, err = questions.ReplaceForArticle(ctx, a.ID, []models.Question{
		newTestQuestion(a.ID, "New question?"),
	})
	require.NoError(t, err)

	stored, err := questions.ListByArticle(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "New question?", stored[0].Question)
}

func TestReplaceForArticleDuplicateTextFailsAtomically(t *testing.T) {
	db := testDB(t)
	articles := NewArticleStore(db, sourceByKey(t, "hindu"))
	questions := NewQuestionStore(db)
	ctx := context.Background()

	a := newTestArticle("hindu", "https://example.com/q3")
	require.NoError(t, articles.Insert(ctx, a))

	_, err := questions.ReplaceForArticle(ctx, a.ID, []models.Question{
		newTestQuestion(a.ID, "Survivor?"),
	})
	require.NoError(t, err)

	_, err = questions.ReplaceForArticle(ctx, a.ID, []models.Question{
		newTestQuestion(a.ID, "Twin?"),
		newTestQuestion(a.ID, "Twin?"),
	})
	require.Error(t, err)

	// The failed replace must not have destroyed the prior set.
	stored, err := questions.ListByArticle(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Survivor?", stored[0].Question)
}

func TestListByArticleEmpty(t *testing.T) {
	db := testDB(t)
	questions := NewQuestionStore(db)

	stored, err := questions.ListByArticle(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDeleteByArticleIDs(t *testing.T) {
	db := testDB(t)
	articles := NewArticleStore(db, sourceByKey(t, "hindu"))
	questions := NewQuestionStore(db)
	ctx := context.Background()

	a := newTestArticle("hindu", "https://example.com/q4")
	require.NoError(t, articles.Insert(ctx, a))
	b := newTestArticle("hindu", "https://example.com/q5")
	require.NoError(t, articles.Insert(ctx, b))

	_, err := questions.ReplaceForArticle(ctx, a.ID, []models.Question{newTestQuestion(a.ID, "A?")})
	require.NoError(t, err)
	_, err = questions.ReplaceForArticle(ctx, b.ID, []models.Question{newTestQuestion(b.ID, "B?")})
	require.NoError(t, err)

	deleted, err := questions.DeleteByArticleIDs(ctx, []int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := questions.ListByArticle(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	deleted, err = questions.DeleteByArticleIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
