package handler

import (
	"kinlink/internal/family/models"
)

// AddMemberRequest is the HTTP request body for POST /family.
type AddMemberRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Relation    string `json:"relation"`
}

// ToDomain converts the body to a service submission. Validation happens in
// the service so transport and engine agree on one contract.
func (r AddMemberRequest) ToDomain() models.AddMemberRequest {
	return models.AddMemberRequest{
		Name:        r.Name,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		Relation:    r.Relation,
	}
}

// UpdateMemberRequest is the HTTP request body for PUT /family/{memberID}.
// The relationship field renames the requester's own link label.
type UpdateMemberRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber"`
	Relationship string `json:"relationship"`
}

func (r UpdateMemberRequest) ToDomain() models.UpdateMemberRequest {
	return models.UpdateMemberRequest{
		Name:         r.Name,
		Email:        r.Email,
		PhoneNumber:  r.PhoneNumber,
		Relationship: r.Relationship,
	}
}
