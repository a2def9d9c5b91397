package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrSessionNotFound  = errors.New("session not found")
	ErrMessageEmpty     = errors.New("message content is empty")
	ErrMessageEnqueue   = errors.New("message enqueue failed")
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyDocument    = errors.New("document contains no extractable text")
	ErrUnsupportedFile  = errors.New("unsupported file type")
)
