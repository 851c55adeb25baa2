package sema

import "fmt"

// ErrorKind enumerates the analyzer's diagnostic kinds, stable identifiers
// usable in tests per spec.md §7.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	UndefinedSymbol
	DuplicateDefinition
	TypeMismatch
	NonLValueAssignment
	ConstAssignment
	FieldNotFound
	ArityMismatch
	CircularType
	BadBitFieldWidth
	ArraySizeNotConstant
	// Additive, from the Task sugar form (original_source/analyzer.py).
	TaskCoreOutOfRange
	TaskPriorityOutOfRange
)

var kindNames = map[ErrorKind]string{
	UndefinedSymbol:        "UndefinedSymbol",
	DuplicateDefinition:    "DuplicateDefinition",
	TypeMismatch:           "TypeMismatch",
	NonLValueAssignment:    "NonLValueAssignment",
	ConstAssignment:        "ConstAssignment",
	FieldNotFound:          "FieldNotFound",
	ArityMismatch:          "ArityMismatch",
	CircularType:           "CircularType",
	BadBitFieldWidth:       "BadBitFieldWidth",
	ArraySizeNotConstant:   "ArraySizeNotConstant",
	TaskCoreOutOfRange:     "TaskCoreOutOfRange",
	TaskPriorityOutOfRange: "TaskPriorityOutOfRange",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Error is the analyzer's diagnostic: (kind, file, line, column, message).
// File is filled in by the driver, which knows the compilation unit's path;
// the analyzer itself only sees token positions.
type Error struct {
	Kind    ErrorKind
	Line    uint32
	Column  uint32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Column, e.Kind, e.Message)
}
