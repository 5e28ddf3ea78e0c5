package domain

import "time"

// LLMResponse is a stored prompt/response pair produced by a language model.
type LLMResponse struct {
	ID             string
	OrganizationID string
	UserID         string
	Prompt         string
	Response       string
	Model          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LLMResponsePatch lists the mutable fields of a stored response. Nil fields are left unchanged.
type LLMResponsePatch struct {
	Prompt   *string
	Response *string
	Model    *string
}

// Apply copies the non-nil patch fields onto r.
func (p LLMResponsePatch) Apply(r *LLMResponse) {
	if p.Prompt != nil {
		r.Prompt = *p.Prompt
	}
	if p.Response != nil {
		r.Response = *p.Response
	}
	if p.Model != nil {
		r.Model = *p.Model
	}
}

// Empty reports whether the patch changes nothing.
func (p LLMResponsePatch) Empty() bool {
	return p.Prompt == nil && p.Response == nil && p.Model == nil
}
