package status

// ShouldCascade reports whether a parent's newly set status must be forced
// onto a child: any status that ranks strictly higher than the child's flows
// down, and Declined always flows down regardless of rank because it sends
// the whole subtree back to rework.
func ShouldCascade(parent, child Status) bool {
	if parent == StatusDeclined {
		return true
	}
	return Rank(parent) > Rank(child)
}
