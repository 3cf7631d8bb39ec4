package channel

// Allowlist is the set of platform-native user ids permitted to talk to an
// adapter. An empty allowlist permits everyone: channels are restricted
// only when the operator configures allowed_users (fail-open, documented
// in the config reference).
type Allowlist struct {
	users map[string]struct{}
}

// NewAllowlist builds an allowlist from configured user ids.
func NewAllowlist(userIDs []string) Allowlist {
	if len(userIDs) == 0 {
		return Allowlist{}
	}
	users := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		users[id] = struct{}{}
	}
	return Allowlist{users: users}
}

// Allowed reports whether the user id may pass. Exact string match; no
// normalization is applied to either side.
func (a Allowlist) Allowed(userID string) bool {
	if len(a.users) == 0 {
		return true
	}
	_, ok := a.users[userID]
	return ok
}

// Restricted reports whether the allowlist actually filters anyone.
func (a Allowlist) Restricted() bool {
	return len(a.users) > 0
}
