package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/remote"
)

// Choice is the operator's answer when remote entries in scope are
// already scored.
type Choice int

const (
	ChoiceAbort Choice = iota
	ChoiceSkipProtected
	ChoiceForceOverwrite
)

// ChooseFunc puts the decision to the operator. The orchestrator stays
// UI-agnostic; the CLI injects an interactive prompt, tests inject a
// canned answer.
type ChooseFunc func(prompt string) (Choice, error)

// ErrAborted means the operator cancelled before any write happened.
var ErrAborted = errors.New("sync aborted by operator")

type scopeKind int

const (
	scopeClass scopeKind = iota
	scopeTrial
)

const (
	rpcUnlockClass = "unlock_class_for_reupload"
	rpcUnlockTrial = "unlock_trial_for_reupload"
)

// Guard is the scored-entry protection decision point. It runs once
// before a cascading upload begins, scoped to the entry point.
type Guard struct {
	remote *remote.Client
	choose ChooseFunc
}

func NewGuard(client *remote.Client, choose ChooseFunc) *Guard {
	return &Guard{remote: client, choose: choose}
}

// check counts scored remote entries in scope and, when any exist, asks
// the operator. It reports whether scoring fields may be uploaded; a
// force-overwrite first unlocks the scope via the remote procedure.
func (g *Guard) check(ctx context.Context, licenseKey string, kind scopeKind, remoteScopeID int64) (bool, error) {
	if remoteScopeID == 0 {
		// Scope never uploaded, nothing remote to protect.
		return false, nil
	}

	scored, err := g.countScored(ctx, licenseKey, kind, remoteScopeID)
	if err != nil {
		return false, err
	}
	if scored == 0 {
		return false, nil
	}

	scope := "class"
	if kind == scopeTrial {
		scope = "trial"
	}
	prompt := fmt.Sprintf("%d scored %s in this %s already exist online. Overwriting replaces finalized results.",
		scored, plural(scored, "entry", "entries"), scope)

	choice, err := g.choose(prompt)
	if err != nil {
		return false, fmt.Errorf("failed to get operator choice: %w", err)
	}

	switch choice {
	case ChoiceAbort:
		return false, ErrAborted
	case ChoiceSkipProtected:
		logger.Info.Printf("Keeping %d scored %s untouched", scored, plural(scored, "entry", "entries"))
		return false, nil
	case ChoiceForceOverwrite:
		return true, g.unlock(ctx, kind, remoteScopeID)
	default:
		return false, fmt.Errorf("unknown operator choice %d", choice)
	}
}

func (g *Guard) countScored(ctx context.Context, licenseKey string, kind scopeKind, remoteScopeID int64) (int, error) {
	classIDs := []int64{remoteScopeID}
	if kind == scopeTrial {
		var classes []idRow
		filters := remote.Filters{
			"license_key": remote.Eq(licenseKey),
			"trial_id":    remote.Eq(remoteScopeID),
			"select":      "id",
		}
		if err := g.remote.Select(ctx, tableClasses, filters, &classes); err != nil {
			return 0, fmt.Errorf("failed to list remote classes for trial: %w", err)
		}
		if len(classes) == 0 {
			return 0, nil
		}
		classIDs = classIDs[:0]
		for _, c := range classes {
			classIDs = append(classIDs, c.ID)
		}
	}

	var scored []idRow
	filters := remote.Filters{
		"license_key": remote.Eq(licenseKey),
		"class_id":    remote.In(classIDs),
		"is_scored":   remote.Eq(true),
		"select":      "id",
	}
	if err := g.remote.Select(ctx, tableEntries, filters, &scored); err != nil {
		return 0, fmt.Errorf("failed to count scored remote entries: %w", err)
	}
	return len(scored), nil
}

func (g *Guard) unlock(ctx context.Context, kind scopeKind, remoteScopeID int64) error {
	name := rpcUnlockClass
	params := map[string]int64{"p_class_id": remoteScopeID}
	if kind == scopeTrial {
		name = rpcUnlockTrial
		params = map[string]int64{"p_trial_id": remoteScopeID}
	}

	count, err := g.remote.RPC(ctx, name, params)
	if err != nil {
		return fmt.Errorf("failed to unlock for reupload: %w", err)
	}
	logger.Info.Printf("Unlocked %d remote %s for reupload", count, plural(count, "entry", "entries"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
