// Package store persists the question records produced by the pipeline.
//
// The table is a flat keyed collection: one item per uploaded image, keyed
// by the object key with its extension removed. Writes are whole-item
// overwrites (last writer wins); reads are point lookups.
package store

import (
	"context"
	"errors"
)

// QuestionRecord is the persisted result of one pipeline run. Attribute
// names are read by the front end and the CLI and must not change.
type QuestionRecord struct {
	ID               string `json:"id" dynamodbav:"id"`
	EnglishQuestion  string `json:"english_question" dynamodbav:"english_question"`
	JapaneseQuestion string `json:"japanese_question" dynamodbav:"japanese_question"`
	Answer           string `json:"answer" dynamodbav:"answer"`
}

// ErrEmptyID is returned when a record or lookup has no id.
var ErrEmptyID = errors.New("record id is empty")

// RecordWriter writes question records.
type RecordWriter interface {
	// PutRecord creates or fully replaces the record with the same ID.
	PutRecord(ctx context.Context, record *QuestionRecord) error
}

// RecordReader reads question records.
type RecordReader interface {
	// GetRecord returns the record for id, or nil, nil when none exists.
	GetRecord(ctx context.Context, id string) (*QuestionRecord, error)
}

// QuestionStore is the full persistence interface. Implementations are
// safe for concurrent use.
type QuestionStore interface {
	RecordWriter
	RecordReader
}
