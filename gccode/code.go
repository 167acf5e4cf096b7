// File: gccode/code.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package gccode classifies the reason a collection was triggered into the
// fixed policy flags consumed by collection tasks. The set of codes is closed:
// a code outside it is an internal consistency failure and panics.

package gccode

import (
	"fmt"
	"strings"
)

// Code is the trigger reason attached to a collection request.
type Code int

const (
	ImplicitDefault Code = iota
	ImplicitAggressive
	ImplicitExcessive
	ImplicitPercolate
	ImplicitPercolateAggressive
	ImplicitPercolateCriticalRegions
	ImplicitPercolateUnloadingClasses
	ImplicitCompleteConcurrent
	ImplicitPercolateAbortedScavenge
	ExplicitNativeOutOfMemory
	ExplicitNotAggressive
	ExplicitRASDumpCompact
	ExplicitSystemGC
	ExplicitIdleGC
	ExplicitPrepareForCheckpoint

	numCodes
)

// policy flags, one bit per question.
type policy uint8

const (
	explicit policy = 1 << iota
	aggressiveCompact
	outOfMemory
	aggressive
	implicitAggressive
	percolate
	rasDump
	clearHeap
)

var table = [numCodes]struct {
	name  string
	flags policy
}{
	ImplicitDefault:                   {"implicit-default", 0},
	ImplicitAggressive:                {"implicit-aggressive", aggressiveCompact | outOfMemory | aggressive | implicitAggressive},
	ImplicitExcessive:                 {"implicit-excessive", aggressiveCompact | outOfMemory | aggressive | implicitAggressive},
	ImplicitPercolate:                 {"implicit-percolate", percolate},
	ImplicitPercolateAggressive:       {"implicit-percolate-aggressive", outOfMemory | aggressive | implicitAggressive | percolate},
	ImplicitPercolateCriticalRegions:  {"implicit-percolate-critical-regions", percolate},
	ImplicitPercolateUnloadingClasses: {"implicit-percolate-unloading-classes", percolate},
	ImplicitCompleteConcurrent:        {"implicit-complete-concurrent", 0},
	ImplicitPercolateAbortedScavenge:  {"implicit-percolate-aborted-scavenge", percolate},
	ExplicitNativeOutOfMemory:         {"explicit-native-out-of-memory", explicit | outOfMemory | aggressive},
	ExplicitNotAggressive:             {"explicit-not-aggressive", explicit},
	ExplicitRASDumpCompact:            {"explicit-rasdump-compact", explicit | aggressive | rasDump},
	ExplicitSystemGC:                  {"explicit-system-gc", explicit | aggressive},
	ExplicitIdleGC:                    {"explicit-idle-gc", explicit | aggressive},
	ExplicitPrepareForCheckpoint:      {"explicit-prepare-for-checkpoint", explicit | aggressive | clearHeap},
}

// UnknownCodeError is the panic value raised for a code outside the enumeration.
type UnknownCodeError struct {
	Code Code
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("gccode: unreachable trigger code %d", int(e.Code))
}

// Codes returns every defined code in declaration order.
func Codes() []Code {
	out := make([]Code, 0, numCodes)
	for c := Code(0); c < numCodes; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c belongs to the enumeration.
func (c Code) Valid() bool {
	return c >= 0 && c < numCodes
}

func (c Code) flags() policy {
	if !c.Valid() {
		panic(&UnknownCodeError{Code: c})
	}
	return table[c].flags
}

func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("gccode(%d)", int(c))
	}
	return table[c].name
}

// Parse maps a name produced by String back to its code.
func Parse(name string) (Code, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c := Code(0); c < numCodes; c++ {
		if table[c].name == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("gccode: unknown trigger %q", name)
}

// IsExplicit reports whether the collection was requested from outside the collector.
func (c Code) IsExplicit() bool { return c.flags()&explicit != 0 }

// ShouldAggressivelyCompact reports whether the heap should be compacted aggressively.
func (c Code) ShouldAggressivelyCompact() bool { return c.flags()&aggressiveCompact != 0 }

// IsOutOfMemory reports whether an out-of-memory condition may be raised
// if the collection does not free enough.
func (c Code) IsOutOfMemory() bool { return c.flags()&outOfMemory != 0 }

// IsAggressive reports whether the collection should be aggressive.
func (c Code) IsAggressive() bool { return c.flags()&aggressive != 0 }

// IsImplicitAggressive reports an aggressive collection triggered by the collector itself.
func (c Code) IsImplicitAggressive() bool { return c.flags()&implicitAggressive != 0 }

// IsPercolate reports a partial collection escalated to a full one.
func (c Code) IsPercolate() bool { return c.flags()&percolate != 0 }

// IsRASDump reports a request coming from a diagnostic dump agent.
func (c Code) IsRASDump() bool { return c.flags()&rasDump != 0 }

// ShouldClearHeap reports whether objects marked as deleted must be cleared,
// which only happens ahead of a checkpoint snapshot.
func (c Code) ShouldClearHeap() bool { return c.flags()&clearHeap != 0 }
