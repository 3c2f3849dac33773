// Package layout decides whether a new implementation can take over the storage of the
// implementation it replaces.
package layout

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/solc"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Violation is one way in which a new layout breaks an old one.
type Violation struct {
	Label  string
	Slot   uint
	Offset uint
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s (slot %d, offset %d): %s", v.Label, v.Slot, v.Offset, v.Reason)
}

// Check enforces append-only evolution. Every variable of the old layout must keep its
// label, slot, offset and type. Variables may be added after the last one, or at the start
// of a `__gap` array that shrinks by the same amount so that it still ends at the same slot.
//
// The returned error wraps proxy.ErrStorageLayoutIncompatible and a *multierror.Error
// listing every Violation.
func Check(t proxy.UpgradeTransition) error {
	if t.FromLayout == nil {
		return fmt.Errorf("%w: layout of %s is unknown", proxy.ErrStorageLayoutIncompatible, versionString(t.FromVersion))
	}
	if t.ToLayout == nil {
		return fmt.Errorf("%w: new artifact has no storage layout", proxy.ErrStorageLayoutIncompatible)
	}
	oldCanon := newCanonicalizer(t.FromLayout)
	newCanon := newCanonicalizer(t.ToLayout)

	var result *multierror.Error
	for _, prev := range t.FromLayout.Storage {
		if err := checkEntry(prev, t.FromLayout, t.ToLayout, oldCanon, newCanon); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", proxy.ErrStorageLayoutIncompatible,
			versionString(t.FromVersion), versionString(t.ToVersion), err)
	}
	return nil
}

func checkEntry(prev solc.StorageLayoutEntry, from, to *solc.StorageLayout, oldCanon, newCanon *canonicalizer) error {
	violation := func(format string, args ...any) *Violation {
		return &Violation{Label: prev.Label, Slot: prev.Slot, Offset: prev.Offset, Reason: fmt.Sprintf(format, args...)}
	}
	prevType := oldCanon.canonical(prev.Type)

	next, ok := entryAt(to, prev.Slot, prev.Offset)
	if ok && next.Label == prev.Label {
		if nextType := newCanon.canonical(next.Type); nextType != prevType {
			return violation("type changed from %s to %s", prevType, nextType)
		}
		return nil
	}
	if isGap(prev) {
		return checkGap(prev, from, to, oldCanon, newCanon, violation)
	}
	if moved, ok := entryByLabel(to, prev.Label); ok {
		return violation("moved to slot %d, offset %d", moved.Slot, moved.Offset)
	}
	if ok {
		return violation("replaced by %s", next.Label)
	}
	return violation("removed")
}

// checkGap accepts a gap that gave up leading slots to new variables.
func checkGap(prev solc.StorageLayoutEntry, from, to *solc.StorageLayout, oldCanon, newCanon *canonicalizer,
	violation func(string, ...any) *Violation) error {
	next, ok := entryByLabel(to, prev.Label)
	if !ok {
		return violation("gap removed")
	}
	prevEnd := prev.Slot + from.SlotsUsed(prev)
	nextEnd := next.Slot + to.SlotsUsed(next)
	if next.Slot < prev.Slot || nextEnd != prevEnd {
		return violation("gap must end at slot %d, now spans slots %d to %d", prevEnd, next.Slot, nextEnd)
	}
	if oldCanon.elementType(prev.Type) != newCanon.elementType(next.Type) {
		return violation("gap element type changed")
	}
	return nil
}

func isGap(e solc.StorageLayoutEntry) bool {
	return strings.HasPrefix(e.Label, "__gap")
}

func entryAt(l *solc.StorageLayout, slot, offset uint) (solc.StorageLayoutEntry, bool) {
	for _, e := range l.Storage {
		if e.Slot == slot && e.Offset == offset {
			return e, true
		}
	}
	return solc.StorageLayoutEntry{}, false
}

func entryByLabel(l *solc.StorageLayout, label string) (solc.StorageLayoutEntry, bool) {
	for _, e := range l.Storage {
		if e.Label == label {
			return e, true
		}
	}
	return solc.StorageLayoutEntry{}, false
}

func versionString(v *semver.Version) string {
	if v == nil {
		return "?"
	}
	return v.String()
}
