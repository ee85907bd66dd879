package clause

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Length bounds, counted in characters after normalization.
const (
	MinLength = 10
	MaxLength = 10000
)

// ValidationError is returned for input that must never reach the analyzers.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid clause text: " + e.Reason
}

// Normalize collapses runs of whitespace into a single space and trims both ends.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Text is clause text that passed validation. The zero value is empty and
// only Validate produces a usable one.
type Text struct {
	s string
}

func (t Text) String() string { return t.s }

// Len is the length in characters.
func (t Text) Len() int { return utf8.RuneCountInString(t.s) }

// Validate normalizes raw and checks its length. The returned text is what
// the analyzers receive.
func Validate(raw string) (Text, error) {
	text := Normalize(raw)
	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return Text{}, &ValidationError{Reason: "text is required"}
	case n < MinLength:
		return Text{}, &ValidationError{Reason: fmt.Sprintf("text must be at least %d characters", MinLength)}
	case n > MaxLength:
		return Text{}, &ValidationError{Reason: fmt.Sprintf("text must be at most %d characters", MaxLength)}
	}
	return Text{s: text}, nil
}

// MustValidate is for tests and fixed inputs.
func MustValidate(raw string) Text {
	t, err := Validate(raw)
	if err != nil {
		panic(err)
	}
	return t
}
