package domain

import (
	"fmt"
	"strings"
)

// FanOutPolicy decides what happens when some scene images of a batch fail.
type FanOutPolicy string

const (
	// FanOutAllOrNothing keeps the wizard in the Style step until every scene has an
	// image in the chosen style. Successful images are kept; a resubmission only
	// requests the scenes still missing.
	FanOutAllOrNothing FanOutPolicy = "all_or_nothing"

	// FanOutBestEffort advances to the Images step with the failed scenes reported.
	FanOutBestEffort FanOutPolicy = "best_effort"
)

// ParseFanOutPolicy converts a configuration value into a FanOutPolicy.
// The empty string selects FanOutAllOrNothing.
func ParseFanOutPolicy(s string) (FanOutPolicy, error) {
	switch FanOutPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FanOutAllOrNothing:
		return FanOutAllOrNothing, nil
	case FanOutBestEffort:
		return FanOutBestEffort, nil
	}
	return "", fmt.Errorf("unknown fan-out policy %q", s)
}
