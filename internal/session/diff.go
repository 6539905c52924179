// diff.go — Session comparison (spec §4.7). Grounded on the teacher's
// internal/session/comparison.go orchestration shape (Compare dispatching
// to per-dimension diffErrors/diffNetwork/diffPerformance helpers) but
// rebuilt against daibug's Event/Interaction/StorageSnapshot model instead
// of the teacher's browser-capture snapshot types.
package session

import (
	"encoding/json"
	"sort"

	"github.com/daibug/daibug/internal/event"
)

// CompareSessions compares two sessions and returns the full SessionDiff.
func CompareSessions(a, b Session) Diff {
	evDiff := diffEvents(a.Events, b.Events)
	inDiff := diffInteractions(a.Interactions, b.Interactions)
	netDiff := diffNetwork(a.Events, b.Events)
	stDiff := diffStorage(a.StorageSnapshots, b.StorageSnapshots)

	identical := evDiff.Empty() && inDiff.Empty() && netDiff.Empty() && stDiff.Empty()

	d := Diff{
		Events:       evDiff,
		Interactions: inDiff,
		Network:      netDiff,
		Storage:      stDiff,
		Identical:    identical,
	}
	if !identical {
		d.DivergesAt = divergesAt(a.Events, b.Events)
	}
	return d
}

func eventFieldsDiffer(a, b event.Event) []string {
	var fields []string
	if a.Source != b.Source {
		fields = append(fields, "source")
	}
	if a.Level != b.Level {
		fields = append(fields, "level")
	}
	if a.TS != b.TS {
		fields = append(fields, "ts")
	}
	if !jsonEqual(a.Payload, b.Payload) {
		fields = append(fields, "payload")
	}
	return fields
}

func jsonEqual(a, b any) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(aj) == string(bj)
}

func diffEvents(a, b []event.Event) EventsDiff {
	am := make(map[string]event.Event, len(a))
	for _, e := range a {
		am[e.ID] = e
	}
	bm := make(map[string]event.Event, len(b))
	for _, e := range b {
		bm[e.ID] = e
	}

	var onlyA, onlyB []string
	var different []EventDiffEntry

	for id, ea := range am {
		eb, ok := bm[id]
		if !ok {
			onlyA = append(onlyA, id)
			continue
		}
		if fields := eventFieldsDiffer(ea, eb); len(fields) > 0 {
			different = append(different, EventDiffEntry{ID: id, Fields: fields})
		}
	}
	for id := range bm {
		if _, ok := am[id]; !ok {
			onlyB = append(onlyB, id)
		}
	}

	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sort.Slice(different, func(i, j int) bool { return different[i].ID < different[j].ID })

	return EventsDiff{OnlyInA: onlyA, OnlyInB: onlyB, Different: different}
}

func interactionSignatureEqual(a, b event.Interaction) bool {
	return a.Type == b.Type &&
		ptrEqual(a.Target, b.Target) &&
		ptrEqual(a.Value, b.Value) &&
		ptrEqual(a.URL, b.URL) &&
		floatPtrEqual(a.X, b.X) &&
		floatPtrEqual(a.Y, b.Y)
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// diffInteractions compares by id-set for interactions present on only one
// side, and positionally for the first signature mismatch (spec §4.7).
func diffInteractions(a, b []event.Interaction) InteractionsDiff {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var different []InteractionDiffEntry
	for i := 0; i < n; i++ {
		if !interactionSignatureEqual(a[i], b[i]) {
			different = append(different, InteractionDiffEntry{ID: a[i].ID, Index: i})
			break
		}
	}

	inA := make(map[string]bool, len(a))
	for _, x := range a {
		inA[x.ID] = true
	}
	inB := make(map[string]bool, len(b))
	for _, x := range b {
		inB[x.ID] = true
	}

	var onlyA, onlyB []string
	for _, x := range a {
		if !inB[x.ID] {
			onlyA = append(onlyA, x.ID)
		}
	}
	for _, x := range b {
		if !inA[x.ID] {
			onlyB = append(onlyB, x.ID)
		}
	}

	return InteractionsDiff{OnlyInA: onlyA, OnlyInB: onlyB, Different: different}
}

// firstSeenStatus returns, per URL, the status of the earliest
// browser:network event, with events ordered by (ts, id).
func firstSeenStatus(events []event.Event) map[string]int {
	out := make(map[string]int)
	seen := make(map[string]bool)
	ordered := sortedEvents(events)
	for _, e := range ordered {
		if e.Source != event.SourceBrowserNetwork {
			continue
		}
		url, ok := e.Payload["url"].(string)
		if !ok || seen[url] {
			continue
		}
		status, ok := asInt(e.Payload["status"])
		if !ok {
			continue
		}
		seen[url] = true
		out[url] = status
	}
	return out
}

func diffNetwork(a, b []event.Event) NetworkDiff {
	am := firstSeenStatus(a)
	bm := firstSeenStatus(b)

	var onlyA, onlyB []string
	var statusDiffs []StatusDifference

	for url, sa := range am {
		sb, ok := bm[url]
		if !ok {
			onlyA = append(onlyA, url)
			continue
		}
		if sa != sb {
			statusDiffs = append(statusDiffs, StatusDifference{URL: url, StatusA: sa, StatusB: sb})
		}
	}
	for url := range bm {
		if _, ok := am[url]; !ok {
			onlyB = append(onlyB, url)
		}
	}

	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sort.Slice(statusDiffs, func(i, j int) bool { return statusDiffs[i].URL < statusDiffs[j].URL })

	return NetworkDiff{EndpointsOnlyInA: onlyA, EndpointsOnlyInB: onlyB, StatusDifferences: statusDiffs}
}

// flattenStorage folds a session's snapshots into one key->value map;
// later snapshots override earlier ones, and within a snapshot local
// overrides session (spec §4.7).
func flattenStorage(snapshots []event.StorageSnapshot) map[string]string {
	out := make(map[string]string)
	for _, snap := range snapshots {
		for k, v := range snap.SessionStorage {
			out[k] = v
		}
		for k, v := range snap.LocalStorage {
			out[k] = v
		}
	}
	return out
}

func diffStorage(a, b []event.StorageSnapshot) StorageDiff {
	am := flattenStorage(a)
	bm := flattenStorage(b)

	var onlyA, onlyB []string
	var different []StorageKeyDiff

	for k, va := range am {
		vb, ok := bm[k]
		if !ok {
			onlyA = append(onlyA, k)
			continue
		}
		if va != vb {
			different = append(different, StorageKeyDiff{Key: k, ValueA: va, ValueB: vb})
		}
	}
	for k := range bm {
		if _, ok := am[k]; !ok {
			onlyB = append(onlyB, k)
		}
	}

	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sort.Slice(different, func(i, j int) bool { return different[i].Key < different[j].Key })

	return StorageDiff{OnlyInA: onlyA, OnlyInB: onlyB, Different: different}
}

// divergesAt finds the minimum ts among the first positional event
// mismatch, or failing that, the ts of the first extra event in the
// longer sequence (spec §4.7).
func divergesAt(a, b []event.Event) *int64 {
	sa := sortedEvents(a)
	sb := sortedEvents(b)

	n := len(sa)
	if len(sb) < n {
		n = len(sb)
	}

	for i := 0; i < n; i++ {
		if sa[i].ID != sb[i].ID || !jsonEqual(sa[i], sb[i]) {
			ts := sa[i].TS
			if sb[i].TS < ts {
				ts = sb[i].TS
			}
			return &ts
		}
	}
	if len(sa) > n {
		ts := sa[n].TS
		return &ts
	}
	if len(sb) > n {
		ts := sb[n].TS
		return &ts
	}
	return nil
}
