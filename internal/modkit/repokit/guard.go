package repokit

import (
	"context"
	"fmt"
	"time"
)

// Ping checks a dependency answers within timeout, applying 5s when ctx has no deadline
func Ping(ctx context.Context, name string, p interface{ Ping(context.Context) error }) error {
	if p == nil {
		return fmt.Errorf("%s: nil dependency", name)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}
