package sync

// resolveConflicts coalesces a batch by (user, project) key. For each key
// the event whose payload carries the highest effective hierarchy wins;
// ties break to the earlier CreatedAt, then to the smaller id, so repeated
// resolution always picks the same winner regardless of arrival order.
//
// Returned winners preserve the original batch order; losers map to the id
// of the event that superseded them.
func resolveConflicts(batch []*SyncEvent) (winners []*SyncEvent, superseded map[string]string) {
	byKey := make(map[string]*SyncEvent, len(batch))
	for _, e := range batch {
		cur, ok := byKey[e.Key()]
		if !ok || beats(e, cur) {
			byKey[e.Key()] = e
		}
	}

	superseded = make(map[string]string)
	winners = make([]*SyncEvent, 0, len(byKey))
	for _, e := range batch {
		if byKey[e.Key()] == e {
			winners = append(winners, e)
		} else {
			superseded[e.ID] = byKey[e.Key()].ID
		}
	}
	return winners, superseded
}

// beats reports whether a should win over b for the same key.
func beats(a, b *SyncEvent) bool {
	if a.Payload.EffectiveHierarchy != b.Payload.EffectiveHierarchy {
		return a.Payload.EffectiveHierarchy > b.Payload.EffectiveHierarchy
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
