package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Invitation permite crear una cuenta con un rol dado.
type Invitation struct {
	ID        uuid.UUID
	Email     string
	Token     string
	Role      Role
	InvitedBy *uuid.UUID
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time

	// InvitedByName solo se completa en ListPending.
	InvitedByName string
}

// InvitationRepository define operaciones sobre invitaciones.
type InvitationRepository interface {
	Create(ctx context.Context, inv Invitation) error

	// GetActiveByToken retorna ErrNotFound si no existe, está usada o expiró.
	GetActiveByToken(ctx context.Context, token string, now time.Time) (*Invitation, error)

	// Accept consume la invitación y crea el usuario en una sola transacción.
	// Retorna ErrNotFound si la invitación ya no está activa y ErrConflict si
	// el email ya existe (en ese caso la invitación no se consume).
	Accept(ctx context.Context, id uuid.UUID, now time.Time, in CreateUserInput) (*User, error)

	// ListPending devuelve invitaciones no usadas y no expiradas, más nuevas primero.
	ListPending(ctx context.Context, now time.Time) ([]Invitation, error)

	// Delete borra una invitación no usada. false si no existía o ya se usó.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
