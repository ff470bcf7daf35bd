package repository

import "context"

// TenantStore agrupa los repositorios de un único tenant.
type TenantStore interface {
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	TwoFactorCodes() TwoFactorRepository
	TrustedDevices() TrustedDeviceRepository
	Invitations() InvitationRepository
	PasswordResets() PasswordResetRepository
	Files() EncryptedFileRepository
}

// CredentialStore da acceso a los datos de identidad por tenant.
type CredentialStore interface {
	// ForTenant devuelve los repositorios del schema. El schema debe venir
	// de tenant.Resolver; uno inválido devuelve ErrInvalidSchema.
	ForTenant(schema string) (TenantStore, error)
}

// TenantDirectory responde preguntas sobre tenants (tabla public.garderies
// y catálogo de schemas).
type TenantDirectory interface {
	// SchemaExists indica si el schema del tenant está provisionado.
	SchemaExists(ctx context.Context, schema string) (bool, error)

	// DisplayName devuelve el nombre visible de la garderie. Retorna
	// ErrNotFound si no hay fila.
	DisplayName(ctx context.Context, slug string) (string, error)

	// ListSlugs devuelve todos los tenants registrados.
	ListSlugs(ctx context.Context) ([]string, error)
}
