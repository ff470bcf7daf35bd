package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role de un usuario dentro de su garderie.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdminGarderie Role = "admin_garderie"
	RoleEducateur     Role = "educateur"
	RoleParent        Role = "parent"
)

// Valid indica si el rol es uno de los conocidos.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdminGarderie, RoleEducateur, RoleParent:
		return true
	}
	return false
}

// Label es el nombre del rol que se muestra en los emails.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super administrateur"
	case RoleAdminGarderie:
		return "Administrateur"
	case RoleEducateur:
		return "Éducateur"
	case RoleParent:
		return "Parent"
	}
	return string(r)
}

// User representa un usuario de un tenant.
type User struct {
	ID                  uuid.UUID
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	Role                Role
	IsActive            bool
	ForcePasswordChange bool
	PreferredLocale     string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayName es "Nombre Apellido" (o el email si no hay nombre).
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	Role            Role
	PreferredLocale string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByEmail busca por email (case-insensitive). Retorna ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Create retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, in CreateUserInput) (*User, error)

	// UpdatePassword reemplaza el hash y el flag force_password_change.
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, forceChange bool) error

	// UpdateEmail retorna ErrConflict si otro usuario ya usa el email.
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
}
