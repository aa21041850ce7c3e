package models

import (
	"strings"

	dErrors "kinlink/pkg/domain-errors"
	"kinlink/pkg/validate"
)

// AddMemberRequest is a create submission. Validation order is part of the
// contract: presence of all fields, then phone format, then email format,
// so callers always see the same first failure.
type AddMemberRequest struct {
	Name        string
	Email       string
	PhoneNumber string
	Relation    string
}

func (r *AddMemberRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Relation = strings.TrimSpace(r.Relation)
}

func (r *AddMemberRequest) Validate() error {
	return validateSubmission(r.Name, r.Email, r.PhoneNumber, r.Relation)
}

// UpdateMemberRequest carries the full replacement values for an update; the
// relationship label is per-requester and applies to the requester's own link.
type UpdateMemberRequest struct {
	Name         string
	Email        string
	PhoneNumber  string
	Relationship string
}

func (r *UpdateMemberRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Relationship = strings.TrimSpace(r.Relationship)
}

func (r *UpdateMemberRequest) Validate() error {
	return validateSubmission(r.Name, r.Email, r.PhoneNumber, r.Relationship)
}

func validateSubmission(name, email, phone, relation string) error {
	if name == "" || email == "" || phone == "" || relation == "" {
		return dErrors.New(dErrors.CodeValidation,
			"all fields are required: name, email, phone number, and relation")
	}
	if !validate.IsValidPhone(phone) {
		return dErrors.New(dErrors.CodeValidation,
			"invalid phone number: must be an Indian mobile number of 10 digits starting with 6, 7, 8, or 9, optionally prefixed +91")
	}
	if !validate.IsValidGmail(email) {
		return dErrors.New(dErrors.CodeValidation,
			"invalid email: only @gmail.com addresses are allowed")
	}
	return nil
}
