package workflow

// MergeFiles combines two file maps into a fresh map. Neither input is
// mutated. On a path collision the right-hand value wins. The engine
// folds parallel generation results through this reducer in plan order,
// so the collision outcome is deterministic regardless of goroutine
// completion order.
func MergeFiles(left, right map[string]string) map[string]string {
	out := make(map[string]string, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}
	for k, v := range right {
		out[k] = v
	}
	return out
}
