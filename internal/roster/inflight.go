package roster

import (
	"fmt"
	"sync"
)

// inflightTracker holds a per-entity busy flag. While an operation on an
// entity is pending, a second one against the same key is inert — the
// UI-side equivalent of a disabled control. Operations on different keys
// run concurrently.
type inflightTracker struct {
	ops sync.Map
}

func (t *inflightTracker) begin(key string) bool {
	_, loaded := t.ops.LoadOrStore(key, struct{}{})
	return !loaded
}

func (t *inflightTracker) end(key string) {
	t.ops.Delete(key)
}

// Busy reports whether an operation on key is currently pending.
func (t *inflightTracker) busy(key string) bool {
	_, loaded := t.ops.Load(key)
	return loaded
}

func slotKey(slotID int) string            { return fmt.Sprintf("slot:%d", slotID) }
func guestKey(guestID int64) string        { return fmt.Sprintf("guest:%d", guestID) }
func billingKey(participant string) string { return "billing:" + participant }

const (
	keyOwner       = "owner"
	keyPlayerCount = "player-count"
)
