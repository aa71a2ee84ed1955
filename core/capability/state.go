package capability

import (
	"context"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
)

// MaxRecentSearches bounds the caller-owned search history.
const MaxRecentSearches = 10

// State is caller-owned request state. The server keeps nothing between
// requests: callers send it with each request and capabilities return any
// updated values in their payloads.
type State map[string]any

type stateKey struct{}

// WithState attaches request state to ctx.
func WithState(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, stateKey{}, state)
}

// StateFromContext returns the state attached to ctx, or an empty State.
func StateFromContext(ctx context.Context) State {
	if state, ok := ctx.Value(stateKey{}).(State); ok && state != nil {
		return state
	}
	return State{}
}

// RecentSearches returns the caller's search history, most recent first.
func (state State) RecentSearches() []string {
	return Config(state).Strings("recentSearches")
}

// RecordSearches returns history with searched prepended, most recent first,
// without duplicates and capped at MaxRecentSearches.
func RecordSearches(history []string, searched ...string) []string {
	updated := make([]string, 0, len(history)+len(searched))
	for index := len(searched) - 1; index >= 0; index-- {
		if term := strings.TrimSpace(searched[index]); term != "" {
			updated = append(updated, term)
		}
	}
	updated = append(updated, history...)
	updated = slice.Unique(updated)
	if len(updated) > MaxRecentSearches {
		updated = updated[:MaxRecentSearches]
	}
	return updated
}
