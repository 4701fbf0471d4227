// Package cache memoizes engine results by input fingerprint. Identical
// inputs always produce identical results, so a stored snapshot can be served
// in place of a new run.
package cache

import (
	"context"
	"fmt"

	"github.com/iwvelando/project-feasibility/pkg/engine"
	"go.uber.org/zap"
)

// Store keeps result snapshots keyed by input fingerprint. Stored results
// are shared and must not be modified.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*engine.Result, bool, error)
	Set(ctx context.Context, fingerprint string, result *engine.Result) error
}

// Compute returns the result for in, from store when it holds one. A failing
// store never fails the computation; it only costs the memoization. hit
// reports whether the result came from the store.
func Compute(ctx context.Context, logger *zap.Logger, store Store, in engine.Input) (result *engine.Result, hit bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fingerprint, err := in.Fingerprint()
	if err != nil {
		return nil, false, err
	}

	if store != nil {
		cached, ok, err := store.Get(ctx, fingerprint)
		switch {
		case err != nil:
			logger.Warn("result cache lookup failed",
				zap.String("op", "cache.Compute"),
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
		case ok:
			logger.Debug("serving cached result",
				zap.String("op", "cache.Compute"),
				zap.String("fingerprint", fingerprint),
			)
			return cached, true, nil
		}
	}

	result, err = engine.Run(logger, in)
	if err != nil {
		return nil, false, err
	}
	if result.Fingerprint != fingerprint {
		return nil, false, fmt.Errorf("result fingerprint %s does not match input fingerprint %s", result.Fingerprint, fingerprint)
	}

	if store != nil {
		if err := store.Set(ctx, fingerprint, result); err != nil {
			logger.Warn("result cache store failed",
				zap.String("op", "cache.Compute"),
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
		}
	}
	return result, false, nil
}
