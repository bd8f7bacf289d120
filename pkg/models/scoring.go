// Package models contains shared data models used across the leadscore codebase.
package models

import "context"

// ScoreProvider is the core interface all scoring-model integrations must
// implement. Never call a specific provider directly — always inject this
// interface.
type ScoreProvider interface {
	// ScoreBatch sends one batch of behavior snapshots to the model and
	// returns its scores. Entries may legitimately be missing from the
	// response; callers must default absent leads rather than fail.
	ScoreBatch(ctx context.Context, leads []BehaviorSnapshot) ([]LeadScore, error)
	// Name returns the provider identifier (e.g., "openai", "openrouter").
	Name() string
	// Model returns the configured model name.
	Model() string
}
