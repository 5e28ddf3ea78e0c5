package port

// AccessMetrics records outcomes of access boundary operations.
type AccessMetrics interface {
	ObserveVerification(operation, outcome string)
	IncRegistration(strategy, outcome string)
	IncInvitation(stage, outcome string)
}

// NoopAccessMetrics discards every observation.
type NoopAccessMetrics struct{}

func (NoopAccessMetrics) ObserveVerification(string, string) {}
func (NoopAccessMetrics) IncRegistration(string, string)     {}
func (NoopAccessMetrics) IncInvitation(string, string)       {}
