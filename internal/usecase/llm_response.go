package usecase

import (
	"context"
	"errors"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

const (
	defaultLLMResponseLimit = 50
	maxLLMResponseLimit     = 200
)

// CreateLLMResponseInput is the payload for storing a model response.
type CreateLLMResponseInput struct {
	Prompt   string `json:"prompt" validate:"required,max=100000"`
	Response string `json:"response" validate:"required,max=200000"`
	Model    string `json:"model" validate:"max=128"`
}

// UpdateLLMResponseInput carries optional replacements.
type UpdateLLMResponseInput struct {
	Prompt   *string `json:"prompt" validate:"omitnil,min=1,max=100000"`
	Response *string `json:"response" validate:"omitnil,min=1,max=200000"`
	Model    *string `json:"model" validate:"omitnil,max=128"`
}

// LLMResponseService stores model responses per organization.
type LLMResponseService struct {
	repo  port.LLMResponseRepository
	clock func() time.Time
}

// NewLLMResponseService constructs an LLMResponseService.
func NewLLMResponseService(repo port.LLMResponseRepository) *LLMResponseService {
	return &LLMResponseService{repo: repo, clock: time.Now}
}

// Create stores a response under the caller's organization.
func (s *LLMResponseService) Create(ctx context.Context, scope AccessScope, input CreateLLMResponseInput) (domain.LLMResponse, error) {
	const op = "create_llm_response"
	if err := requireScope(op, scope); err != nil {
		return domain.LLMResponse{}, err
	}
	if err := validateInput(op, input); err != nil {
		return domain.LLMResponse{}, err
	}

	now := s.clock().UTC()
	resp := domain.LLMResponse{
		ID:             uuid.NewString(),
		OrganizationID: scope.OrganizationID,
		UserID:         scope.UserID,
		Prompt:         input.Prompt,
		Response:       input.Response,
		Model:          input.Model,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, resp); err != nil {
		return domain.LLMResponse{}, storeError(op, err)
	}
	return resp, nil
}

// List returns the newest responses of the caller's organization.
func (s *LLMResponseService) List(ctx context.Context, scope AccessScope, limit int) ([]domain.LLMResponse, error) {
	const op = "list_llm_responses"
	if err := requireScope(op, scope); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLLMResponseLimit
	}
	if limit > maxLLMResponseLimit {
		limit = maxLLMResponseLimit
	}

	responses, err := s.repo.List(ctx, scope.OrganizationID, limit)
	if err != nil {
		return nil, storeError(op, err)
	}
	return responses, nil
}

// Get returns one response of the caller's organization.
func (s *LLMResponseService) Get(ctx context.Context, scope AccessScope, id string) (domain.LLMResponse, error) {
	const op = "get_llm_response"
	if err := requireScope(op, scope); err != nil {
		return domain.LLMResponse{}, err
	}
	resp, err := s.repo.GetByID(ctx, scope.OrganizationID, id)
	if err != nil {
		return domain.LLMResponse{}, storeError(op, err)
	}
	return *resp, nil
}

// Update applies a partial update to a response.
func (s *LLMResponseService) Update(ctx context.Context, scope AccessScope, id string, input UpdateLLMResponseInput) (domain.LLMResponse, error) {
	const op = "update_llm_response"
	if err := requireScope(op, scope); err != nil {
		return domain.LLMResponse{}, err
	}
	if err := validateInput(op, input); err != nil {
		return domain.LLMResponse{}, err
	}

	patch := domain.LLMResponsePatch{Prompt: input.Prompt, Response: input.Response, Model: input.Model}
	if patch.Empty() {
		return domain.LLMResponse{}, newOpError(op, ErrValidationFailed, "at least one field must be provided", nil)
	}

	resp, err := s.repo.Update(ctx, scope.OrganizationID, id, patch, s.clock().UTC())
	if err != nil {
		return domain.LLMResponse{}, storeError(op, err)
	}
	return *resp, nil
}

// Delete removes a response.
func (s *LLMResponseService) Delete(ctx context.Context, scope AccessScope, id string) error {
	const op = "delete_llm_response"
	if err := requireScope(op, scope); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, scope.OrganizationID, id); err != nil {
		return storeError(op, err)
	}
	return nil
}

func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newOpError(op, ErrNotFound, "llm response not found", err)
	case errors.Is(err, repository.ErrConflict):
		return newOpError(op, ErrValidationFailed, "llm response already exists", err)
	}
	return newOpError(op, ErrUpstreamFailure, "response store unavailable", err)
}
