package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/cert-teacher/internal/store"
)

func TestPrintRecord(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	require.NoError(t, db.PutRecord(ctx, &store.QuestionRecord{
		ID:               "sample",
		EnglishQuestion:  "What is 2+2? A)3 B)4",
		JapaneseQuestion: "2+2は何ですか？ A)3 B)4",
		Answer:           "答えはB",
	}))

	var out bytes.Buffer
	require.NoError(t, printRecord(ctx, db, "questions", "sample", &out))

	assert.Contains(t, out.String(), "\n  \"japanese_question\": \"2+2は何ですか？ A)3 B)4\"")
	assert.NotContains(t, out.String(), `\u`, "Japanese text is printed as is")

	var got store.QuestionRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "答えはB", got.Answer)
}

func TestPrintRecord_NotFound(t *testing.T) {
	var out bytes.Buffer
	err := printRecord(context.Background(), store.NewMemoryStore(), "questions", "dea01", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no record with id "dea01" in questions`)
	assert.Empty(t, out.String())
}
