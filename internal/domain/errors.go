package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// VenueError represents a venue transport failure that may be retriable
type VenueError struct {
	Venue     string // Venue name
	Op        string // Operation that failed (e.g., "place", "cancel", "query")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *VenueError) Error() string {
	return e.Venue + " " + e.Op + ": " + e.Err.Error()
}

func (e *VenueError) IsRetriable() bool {
	return e.Retriable
}

func (e *VenueError) Unwrap() error {
	return e.Err
}

// NewVenueError creates a retriable venue error
func NewVenueError(venue, op string, err error) *VenueError {
	return &VenueError{Venue: venue, Op: op, Err: err, Retriable: true}
}

// NewFatalVenueError creates a non-retriable venue error
func NewFatalVenueError(venue, op string, err error) *VenueError {
	return &VenueError{Venue: venue, Op: op, Err: err, Retriable: false}
}

var (
	// ErrInsufficientCapital is returned when a reservation is refused
	// for lack of available pool capital. Expected outcome, never fatal.
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrRiskRejected is returned when a pre-trade risk check fails.
	ErrRiskRejected = errors.New("risk rejected")

	// ErrVenueTimeout is returned when a leg placement exceeds its bounded wait.
	ErrVenueTimeout = errors.New("venue timeout")

	// ErrVenueRejected is returned when a venue refuses an order outright.
	ErrVenueRejected = errors.New("venue rejected")

	// ErrPartialFill is returned when exactly one leg of a spread fills.
	ErrPartialFill = errors.New("partial fill")

	// ErrEnginePaused is returned when new opportunities are refused by a pause control.
	ErrEnginePaused = errors.New("engine paused")

	// ErrUnknownVenue is returned when no client is registered for a venue.
	ErrUnknownVenue = errors.New("unknown venue")
)
