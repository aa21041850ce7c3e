package handler

import (
	"time"

	"kinlink/internal/family/models"
)

// MemberResponse is the wire shape of a family member record.
type MemberResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	IsUser      bool      `json:"isUser"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MutationResponse wraps create and update outcomes with their status.
type MutationResponse struct {
	Status string          `json:"status"`
	Member *MemberResponse `json:"familyMember,omitempty"`
}

// ListResponse maps each relation label to its member summary.
type ListResponse struct {
	Family map[string]models.MemberSummary `json:"family"`
}

// RemoveResponse reports the outcome of an unlink.
type RemoveResponse struct {
	Status  string `json:"status"`
	Deleted bool   `json:"deleted"`
}

// FromMember converts a domain record to the wire shape.
func FromMember(member *models.FamilyMember) *MemberResponse {
	if member == nil {
		return nil
	}
	resp := &MemberResponse{
		ID:          member.ID.String(),
		Name:        member.Name,
		Email:       member.Email,
		PhoneNumber: member.PhoneNumber,
		IsUser:      member.IsUser,
		CreatedAt:   member.CreatedAt,
		UpdatedAt:   member.UpdatedAt,
	}
	if member.UserID != nil {
		resp.UserID = member.UserID.String()
	}
	return resp
}
