package core

import "context"

// ShutdownFunc releases one resource during graceful shutdown. It should
// honor ctx's deadline and be safe to call more than once.
type ShutdownFunc func(ctx context.Context) error
