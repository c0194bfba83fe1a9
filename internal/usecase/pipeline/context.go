package pipeline

import (
	"context"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

// ContextResolver fetches the current narrative context of a session.
// Implementations must tolerate missing context and return nil, nil.
type ContextResolver interface {
	Resolve(ctx context.Context, sessionID string) (*entities.SessionContext, error)
}
