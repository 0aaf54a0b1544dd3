package biz

import "errors"

// ErrNoRelevantDocuments is returned when a query matches no stored
// chunks, typically because nothing has been ingested yet.
var ErrNoRelevantDocuments = errors.New("no relevant documents found")

// ErrEmptyQuestion is returned when a query contains no usable text.
var ErrEmptyQuestion = errors.New("question must not be empty")
