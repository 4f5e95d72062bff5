package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLocationNotFound is returned by location resolvers when nothing matches.
	ErrLocationNotFound = errors.New("location not found")
	// ErrConflict is returned by stores when memory changed since it was read.
	ErrConflict = errors.New("conversation memory was updated concurrently")
)

// LocationSuggestion is an alternative a provider offers for an unresolved query.
type LocationSuggestion struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	CountryCode string `json:"countryCode,omitempty"`
}

// UnresolvedLocationError reports free-text that no provider location matched.
// It is a user-correctable condition, never fatal to a conversation.
type UnresolvedLocationError struct {
	Field       string
	Query       string
	Suggestions []LocationSuggestion
}

func (e *UnresolvedLocationError) Error() string {
	return fmt.Sprintf("unresolved %s: %q", e.Field, e.Query)
}

// Country is the outcome of resolving a destination to its country.
type Country struct {
	Code string
	Name string
}
