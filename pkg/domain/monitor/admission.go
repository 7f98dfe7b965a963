package monitor

// CanAdmit is the quota guard evaluated before a task is created: a scope
// holding count tasks may gain one more only while count < limit.
func CanAdmit(scopeID string, count, limit int) error {
	if count >= limit {
		return &QuotaError{ScopeID: scopeID, Count: count, Limit: limit}
	}
	return nil
}
