package ledger

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
)

// ItemLocker serializes mutating operations per item. Lock acquires every
// given item and returns a single function releasing all of them.
// Implementations must acquire in SortedUnique order so that two callers
// locking overlapping item sets cannot deadlock.
type ItemLocker interface {
	Lock(ctx context.Context, itemIDs ...uuid.UUID) (unlock func(), err error)
}

// SortedUnique returns the distinct IDs in ascending byte order
func SortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
