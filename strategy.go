package tapesort

import (
	"context"
	"fmt"
	"strings"

	tserrors "github.com/tamirms/tapesort/errors"
)

// Strategy identifies the tape merge algorithm a FileSorter runs.
type Strategy uint8

const (
	// StrategyPolyphase distributes runs over m-1 tapes by a generalized
	// Fibonacci schedule and repeatedly merges into the empty tape.
	StrategyPolyphase Strategy = iota

	// StrategyBalanced distributes runs round-robin over one group of tapes
	// and merges back and forth between two equal groups.
	StrategyBalanced

	// StrategyNatural splits natural runs over two tapes and merges pairs.
	StrategyNatural

	// StrategyStraight splits fixed-size groups over two tapes and merges
	// pairs, doubling the group size each pass.
	StrategyStraight
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyPolyphase:
		return "polyphase"
	case StrategyBalanced:
		return "balanced"
	case StrategyNatural:
		return "natural"
	case StrategyStraight:
		return "straight"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy name (case-insensitive) to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "polyphase", "multiphase":
		return StrategyPolyphase, nil
	case "balanced":
		return StrategyBalanced, nil
	case "natural":
		return StrategyNatural, nil
	case "straight":
		return StrategyStraight, nil
	}
	return 0, fmt.Errorf("%w: %q", tserrors.ErrUnknownStrategy, name)
}

// mergeStrategy turns the staging file of a workspace, which holds every
// input value as a sequence of ascending runs, into one sorted tape.
//
// # Contract
//
// sortStaged receives the total number of real runs in the staging file
// (always at least 2; fewer is handled by the caller) and returns the path
// of the tape holding the result. The result may still contain dummy
// markers, which the caller drops while copying it out. The returned path
// must live inside the workspace.
type mergeStrategy interface {
	sortStaged(ctx context.Context, ws *workspace, runs int64) (string, error)
}

// newMergeStrategy validates the parameters a strategy needs and builds it.
func newMergeStrategy(s Strategy, cfg *config) (mergeStrategy, error) {
	switch s {
	case StrategyPolyphase:
		if cfg.tapes < 3 || cfg.tapes > maxTapes {
			return nil, fmt.Errorf("%w: polyphase needs 3..%d tapes, got %d",
				tserrors.ErrInvalidTapeCount, maxTapes, cfg.tapes)
		}
		order := cfg.effectiveOrder()
		if order < minOrder || order > maxOrder {
			return nil, fmt.Errorf("%w: need %d..%d, got %d",
				tserrors.ErrInvalidOrder, minOrder, maxOrder, order)
		}
		return &polyphase{cfg: cfg, tapeCount: cfg.tapes, order: order}, nil
	case StrategyBalanced:
		if cfg.tapes < minTapes || cfg.tapes > maxTapes {
			return nil, fmt.Errorf("%w: balanced needs %d..%d tapes per group, got %d",
				tserrors.ErrInvalidTapeCount, minTapes, maxTapes, cfg.tapes)
		}
		return &balanced{cfg: cfg, groupSize: cfg.tapes}, nil
	case StrategyNatural:
		return &natural{cfg: cfg}, nil
	case StrategyStraight:
		return &straight{cfg: cfg, initialGroup: int64(cfg.chunkSize)}, nil
	}
	return nil, fmt.Errorf("%w: %d", tserrors.ErrUnknownStrategy, s)
}
