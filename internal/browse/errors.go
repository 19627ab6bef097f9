package browse

import "errors"

// Validation errors are returned by the filter setters; the stored state is left unchanged.
var (
	ErrInvalidMinScore = errors.New("min score must be a number between 0 and 10")
	ErrInvalidType     = errors.New("unknown anime type")
	ErrInvalidStatus   = errors.New("unknown airing status")
	ErrInvalidSeason   = errors.New("unknown season")
	ErrInvalidYear     = errors.New("year out of range")
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidGenre    = errors.New("genre ids must be positive integers")
	ErrUnknownField    = errors.New("unknown filter field")
)

var (
	ErrFiltersLocked     = errors.New("filters are locked while a quick lookup is selected")
	ErrUnknownSuggestion = errors.New("suggestion not found")
	ErrClosed            = errors.New("controller is closed")
	ErrNoGenreCatalog    = errors.New("genre catalog not configured")
)

var validationErrors = []error{
	ErrInvalidMinScore,
	ErrInvalidType,
	ErrInvalidStatus,
	ErrInvalidSeason,
	ErrInvalidYear,
	ErrInvalidPage,
	ErrInvalidGenre,
	ErrUnknownField,
}

// IsValidation reports whether err was caused by rejected user input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
