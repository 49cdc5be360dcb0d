// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package syncpolicy holds the rules deciding a translation row's sync flag.
// It performs no I/O.
package syncpolicy

import "fmt"

// Mode selects how the initial flag of a new non-base row is chosen.
type Mode string

// Initial sync modes.
const (
	// ModeExplicitContent syncs new rows unless the author supplied content for that language.
	ModeExplicitContent Mode = "explicit-content"
	// ModeAlwaysSynced syncs every new non-base row.
	ModeAlwaysSynced Mode = "always-synced"
	// ModeAlwaysDiverged leaves every new non-base row to editors.
	ModeAlwaysDiverged Mode = "always-diverged"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeExplicitContent, ModeAlwaysSynced, ModeAlwaysDiverged:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
}

// Policy decides sync flag transitions.
type Policy struct {
	Mode Mode
}

// New returns a policy for mode. An empty mode means ModeExplicitContent.
func New(mode Mode) Policy {
	if mode == "" {
		mode = ModeExplicitContent
	}
	return Policy{Mode: mode}
}

// Decision is the outcome of an edit.
type Decision struct {
	// Synced is the flag to store on the edited row.
	Synced bool
	// OverwriteFromBase asks for the row to be refreshed from base right away.
	OverwriteFromBase bool
	// Propagate asks for the base content to be fanned out to synced rows.
	Propagate bool
}

// OnCreate returns the flag of a newly materialised row.
// The base row is never synced.
func (p Policy) OnCreate(isBase, explicitContent bool) bool {
	if isBase {
		return false
	}
	switch p.Mode {
	case ModeAlwaysSynced:
		return true
	case ModeAlwaysDiverged:
		return false
	default:
		return !explicitContent
	}
}

// OnEditorUpdate decides the flag after an editor writes a non-base row.
// An edit diverges the row unless the editor re-asserts sync, in which case
// the row is refreshed from base once.
func (p Policy) OnEditorUpdate(isBase, reassertSync bool) Decision {
	if isBase {
		return p.OnBaseUpdate()
	}
	if reassertSync {
		return Decision{Synced: true, OverwriteFromBase: true}
	}
	return Decision{Synced: false}
}

// OnBaseUpdate leaves the base row unsynced and requests propagation.
func (p Policy) OnBaseUpdate() Decision {
	return Decision{Synced: false, Propagate: true}
}
