// Package testutil provides testing utilities for trakbot.
package testutil

// Safe test tokens that won't trigger secret scanning.
// Real Tracker tokens are 32 hex characters; never paste one into a test.
const (
	// FakeTrackerToken is a safe test API token for Pivotal Tracker.
	FakeTrackerToken = "test-tracker-token"

	// FakeTrackerTokenRotated stands in for a user's replacement token.
	FakeTrackerTokenRotated = "test-tracker-token-rotated"

	// FakeIRCPassword is a safe test server password.
	FakeIRCPassword = "test-irc-password"
)
