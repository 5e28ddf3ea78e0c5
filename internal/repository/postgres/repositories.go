package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users         *UserRepository
	Organizations *OrganizationRepository
	Invitations   *InvitationRepository
	APIKeys       *APIKeyRepository
	Sessions      *SessionRepository
	Endpoints     *EndpointRepository
	LLMResponses  *LLMResponseRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(exec),
		Organizations: NewOrganizationRepository(exec),
		Invitations:   NewInvitationRepository(exec),
		APIKeys:       NewAPIKeyRepository(exec),
		Sessions:      NewSessionRepository(exec),
		Endpoints:     NewEndpointRepository(exec),
		LLMResponses:  NewLLMResponseRepository(exec),
	}
}
