package model

// Roles carried in the JWT issued by the external auth service.
const (
	RoleAdmin       = "admin"
	RoleParticipant = "participant"
)
