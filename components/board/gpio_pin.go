package board

import "context"

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set drives the pin as an output, either low or high.
	Set(ctx context.Context, high bool, extra map[string]interface{}) error

	// Get reads the high/low state of the pin as an input.
	Get(ctx context.Context, extra map[string]interface{}) (bool, error)
}
