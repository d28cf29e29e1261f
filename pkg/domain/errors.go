package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by every survey component.
var (
	ErrMalformedInput     = errors.New("malformed input")
	ErrDuplicateID        = errors.New("duplicate survey id")
	ErrNotFound           = errors.New("survey not found")
	ErrInvalidEnumValue   = errors.New("invalid enum value")
	ErrInvalidPath        = errors.New("invalid settings path")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrParseFailure       = errors.New("parse failure")
	ErrInvalidRecord      = errors.New("invalid survey record")

	// Import pipeline stage guards.
	ErrMappingIncomplete = errors.New("mapping incomplete")
	ErrStageOrder        = errors.New("stage order")
)

// NotFoundError names the missing survey id.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("survey %q not found", e.ID)
}

// Is lets NotFoundError match ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateIDError names the colliding survey id.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("survey %q already exists", e.ID)
}

// Is lets DuplicateIDError match ErrDuplicateID.
func (e DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// ValidationError carries the collected validation messages of a rejected record.
type ValidationError struct {
	Errors []string
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrInvalidRecord.Error()
	}
	return ErrInvalidRecord.Error() + ": " + strings.Join(e.Errors, "; ")
}

// Is lets ValidationError match ErrInvalidRecord.
func (e ValidationError) Is(target error) bool { return target == ErrInvalidRecord }

// ParseError reports a hard failure while reading delimited text.
type ParseError struct {
	Line   int
	Reason string
}

func (e ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse failure at line %d: %s", e.Line, e.Reason)
	}
	return "parse failure: " + e.Reason
}

// Is lets ParseError match ErrParseFailure.
func (e ParseError) Is(target error) bool { return target == ErrParseFailure }
