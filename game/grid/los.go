package grid

// LineOfSight walks from `from` toward `to` one 8-directional step at a time.
// It fails at the first blocked cell strictly between the endpoints and
// reports that cell. Neither endpoint is tested, so a target standing on an
// occupied cell does not hide itself; the result is therefore not symmetric.
func LineOfSight(b Blocker, from, to Pos) (bool, Pos) {
	cur := from
	for cur != to {
		next := cur.Add(DirectionOf(cur, to).Offset())
		if next == to {
			break
		}
		if b.IsBlocked(next) {
			return false, next
		}
		cur = next
	}
	return true, to
}
