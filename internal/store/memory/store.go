// Package memory implementa repository.CredentialStore en memoria. Respeta
// la misma semántica condicional que el store pg (revocar una sola vez,
// consumir una sola vez, cap de intentos) y se usa en tests y en desarrollo.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/tenant"
)

type Store struct {
	mu          sync.Mutex
	tenants     map[string]*tenantData
	provisioned map[string]bool   // schemas "creados"
	names       map[string]string // slug -> display name
}

var (
	_ repository.CredentialStore = (*Store)(nil)
	_ repository.TenantDirectory = (*Store)(nil)
)

func New() *Store {
	return &Store{
		tenants:     map[string]*tenantData{},
		provisioned: map[string]bool{},
		names:       map[string]string{},
	}
}

type tenantData struct {
	users       map[uuid.UUID]*repository.User
	refresh     map[uuid.UUID]*repository.RefreshToken
	codes       map[uuid.UUID]*repository.TwoFactorCode
	devices     map[uuid.UUID]*repository.TrustedDevice
	invitations map[uuid.UUID]*repository.Invitation
	resets      map[uuid.UUID]*repository.PasswordResetToken
	files       map[uuid.UUID]*fileRow
	seq         int64 // orden de inserción de códigos 2FA
	codeSeq     map[uuid.UUID]int64
}

type fileRow struct {
	repository.PlaintextFile
	encrypted bool
	meta      repository.EncryptionMeta
}

func newTenantData() *tenantData {
	return &tenantData{
		users:       map[uuid.UUID]*repository.User{},
		refresh:     map[uuid.UUID]*repository.RefreshToken{},
		codes:       map[uuid.UUID]*repository.TwoFactorCode{},
		devices:     map[uuid.UUID]*repository.TrustedDevice{},
		invitations: map[uuid.UUID]*repository.Invitation{},
		resets:      map[uuid.UUID]*repository.PasswordResetToken{},
		files:       map[uuid.UUID]*fileRow{},
		codeSeq:     map[uuid.UUID]int64{},
	}
}

// AddTenant provisiona un tenant vacío (equivalente a crear el schema).
func (s *Store) AddTenant(slug, displayName string) {
	schema, err := tenant.SchemaName(slug)
	if err != nil {
		panic(fmt.Sprintf("memory: invalid slug %q", slug))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[schema]; !ok {
		s.tenants[schema] = newTenantData()
	}
	s.provisioned[schema] = true
	if displayName != "" {
		s.names[slug] = displayName
	}
}

// AddFile registra un archivo en claro para un tenant (tests de migración).
func (s *Store) AddFile(schema string, f repository.PlaintextFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if td, ok := s.tenants[schema]; ok {
		td.files[f.ID] = &fileRow{PlaintextFile: f}
	}
}

// FileMeta devuelve la metadata guardada por MarkEncrypted.
func (s *Store) FileMeta(schema string, id uuid.UUID) (repository.EncryptionMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	td, ok := s.tenants[schema]
	if !ok {
		return repository.EncryptionMeta{}, false
	}
	f, ok := td.files[id]
	if !ok || !f.encrypted {
		return repository.EncryptionMeta{}, false
	}
	return f.meta, true
}

func (s *Store) ForTenant(schema string) (repository.TenantStore, error) {
	if !tenant.ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidSchema, schema)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Un schema no provisionado se comporta como uno vacío; la existencia la
	// decide SchemaExists.
	if _, ok := s.tenants[schema]; !ok {
		s.tenants[schema] = newTenantData()
	}
	return &tenantStore{s: s, schema: schema}, nil
}

// ─── TenantDirectory ───

func (s *Store) SchemaExists(_ context.Context, schema string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provisioned[schema], nil
}

func (s *Store) DisplayName(_ context.Context, slug string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.names[slug]; ok {
		return n, nil
	}
	return "", repository.ErrNotFound
}

func (s *Store) ListSlugs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.names))
	for slug := range s.names {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out, nil
}

type tenantStore struct {
	s      *Store
	schema string
}

// with ejecuta fn con el lock tomado y los datos del tenant.
func (t *tenantStore) with(fn func(td *tenantData)) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	fn(t.s.tenants[t.schema])
}

func (t *tenantStore) Users() repository.UserRepository                   { return &users{t} }
func (t *tenantStore) RefreshTokens() repository.RefreshTokenRepository   { return &refreshTokens{t} }
func (t *tenantStore) TwoFactorCodes() repository.TwoFactorRepository     { return &codes{t} }
func (t *tenantStore) TrustedDevices() repository.TrustedDeviceRepository { return &devices{t} }
func (t *tenantStore) Invitations() repository.InvitationRepository       { return &invitations{t} }
func (t *tenantStore) PasswordResets() repository.PasswordResetRepository { return &resets{t} }
func (t *tenantStore) Files() repository.EncryptedFileRepository          { return &files{t} }

func copyUser(u *repository.User) *repository.User { c := *u; return &c }

// ─── Users ───

type users struct{ t *tenantStore }

func (r *users) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	var out *repository.User
	r.t.with(func(td *tenantData) {
		for _, u := range td.users {
			if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
				out = copyUser(u)
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *users) GetByID(_ context.Context, id uuid.UUID) (*repository.User, error) {
	var out *repository.User
	r.t.with(func(td *tenantData) {
		if u, ok := td.users[id]; ok {
			out = copyUser(u)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *users) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	var (
		out *repository.User
		err error
	)
	r.t.with(func(td *tenantData) { out, err = createUser(td, in) })
	return out, err
}

func createUser(td *tenantData, in repository.CreateUserInput) (*repository.User, error) {
	for _, u := range td.users {
		if strings.EqualFold(u.Email, in.Email) {
			return nil, repository.ErrConflict
		}
	}
	locale := in.PreferredLocale
	if locale == "" {
		locale = "fr"
	}
	now := time.Now()
	u := &repository.User{
		ID:              uuid.New(),
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Role:            in.Role,
		IsActive:        true,
		PreferredLocale: locale,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	td.users[u.ID] = u
	return copyUser(u), nil
}

// PutUser inserta un usuario tal cual (fixtures de tests).
func (s *Store) PutUser(schema string, u repository.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	td, ok := s.tenants[schema]
	if !ok {
		td = newTenantData()
		s.tenants[schema] = td
	}
	s.provisioned[schema] = true
	c := u
	td.users[u.ID] = &c
}

func (r *users) UpdatePassword(_ context.Context, id uuid.UUID, hash string, forceChange bool) error {
	err := repository.ErrNotFound
	r.t.with(func(td *tenantData) {
		if u, ok := td.users[id]; ok {
			u.PasswordHash = hash
			u.ForcePasswordChange = forceChange
			u.UpdatedAt = time.Now()
			err = nil
		}
	})
	return err
}

func (r *users) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	err := repository.ErrNotFound
	r.t.with(func(td *tenantData) {
		u, ok := td.users[id]
		if !ok {
			return
		}
		for _, other := range td.users {
			if other.ID != id && strings.EqualFold(other.Email, email) {
				err = repository.ErrConflict
				return
			}
		}
		u.Email = email
		u.UpdatedAt = time.Now()
		err = nil
	})
	return err
}

// ─── Refresh tokens ───

type refreshTokens struct{ t *tenantStore }

func (r *refreshTokens) Create(_ context.Context, tok repository.RefreshToken) error {
	var err error
	r.t.with(func(td *tenantData) {
		if _, ok := td.refresh[tok.ID]; ok {
			err = repository.ErrConflict
			return
		}
		c := tok
		c.Revoked = false
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		td.refresh[tok.ID] = &c
	})
	return err
}

func (r *refreshTokens) Get(_ context.Context, id uuid.UUID) (*repository.RefreshToken, error) {
	var out *repository.RefreshToken
	r.t.with(func(td *tenantData) {
		if tok, ok := td.refresh[id]; ok {
			c := *tok
			out = &c
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *refreshTokens) Revoke(_ context.Context, id uuid.UUID) (*repository.RefreshToken, error) {
	var out *repository.RefreshToken
	r.t.with(func(td *tenantData) {
		tok, ok := td.refresh[id]
		if !ok || tok.Revoked {
			return
		}
		tok.Revoked = true
		c := *tok
		out = &c
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *refreshTokens) RevokeAllForUser(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	r.t.with(func(td *tenantData) {
		for _, tok := range td.refresh {
			if tok.UserID == userID && !tok.Revoked {
				tok.Revoked = true
				n++
			}
		}
	})
	return n, nil
}

// ─── 2FA ───

type codes struct{ t *tenantStore }

func (r *codes) InvalidateActive(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	r.t.with(func(td *tenantData) {
		for _, c := range td.codes {
			if c.UserID == userID && !c.Used {
				c.Used = true
				n++
			}
		}
	})
	return n, nil
}

func (r *codes) Create(_ context.Context, c repository.TwoFactorCode) error {
	r.t.with(func(td *tenantData) {
		cp := c
		cp.Used = false
		cp.Attempts = 0
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		td.seq++
		td.codeSeq[cp.ID] = td.seq
		td.codes[cp.ID] = &cp
	})
	return nil
}

func (r *codes) GetLatestActive(_ context.Context, userID uuid.UUID, now time.Time) (*repository.TwoFactorCode, error) {
	var out *repository.TwoFactorCode
	r.t.with(func(td *tenantData) {
		var best int64 = -1
		for id, c := range td.codes {
			if c.UserID != userID || c.Used || !c.ExpiresAt.After(now) {
				continue
			}
			if seq := td.codeSeq[id]; seq > best {
				best = seq
				cp := *c
				out = &cp
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *codes) IncrementAttempts(_ context.Context, id uuid.UUID, maxAttempts int) (*repository.TwoFactorCode, error) {
	var out *repository.TwoFactorCode
	r.t.with(func(td *tenantData) {
		c, ok := td.codes[id]
		if !ok || c.Used || c.Attempts >= maxAttempts {
			return
		}
		c.Attempts++
		cp := *c
		out = &cp
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *codes) MarkUsed(_ context.Context, id uuid.UUID) (bool, error) {
	won := false
	r.t.with(func(td *tenantData) {
		if c, ok := td.codes[id]; ok && !c.Used {
			c.Used = true
			won = true
		}
	})
	return won, nil
}

// ─── Trusted devices ───

type devices struct{ t *tenantStore }

func (r *devices) Create(_ context.Context, d repository.TrustedDevice) error {
	r.t.with(func(td *tenantData) {
		cp := d
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		td.devices[d.ID] = &cp
	})
	return nil
}

func (r *devices) GetActive(_ context.Context, id, userID uuid.UUID, now time.Time) (*repository.TrustedDevice, error) {
	var out *repository.TrustedDevice
	r.t.with(func(td *tenantData) {
		if d, ok := td.devices[id]; ok && d.UserID == userID && d.ExpiresAt.After(now) {
			cp := *d
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *devices) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	r.t.with(func(td *tenantData) {
		if _, ok := td.devices[id]; ok {
			delete(td.devices, id)
			deleted = true
		}
	})
	return deleted, nil
}

func (r *devices) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	r.t.with(func(td *tenantData) {
		for id, d := range td.devices {
			if !d.ExpiresAt.After(now) {
				delete(td.devices, id)
				n++
			}
		}
	})
	return n, nil
}

// ─── Invitations ───

type invitations struct{ t *tenantStore }

func (r *invitations) Create(_ context.Context, inv repository.Invitation) error {
	var err error
	r.t.with(func(td *tenantData) {
		for _, other := range td.invitations {
			if other.Token == inv.Token {
				err = repository.ErrConflict
				return
			}
		}
		cp := inv
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		td.invitations[inv.ID] = &cp
	})
	return err
}

func (r *invitations) GetActiveByToken(_ context.Context, token string, now time.Time) (*repository.Invitation, error) {
	var out *repository.Invitation
	r.t.with(func(td *tenantData) {
		for _, inv := range td.invitations {
			if inv.Token == token && !inv.Used && inv.ExpiresAt.After(now) {
				cp := *inv
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *invitations) Accept(_ context.Context, id uuid.UUID, now time.Time, in repository.CreateUserInput) (*repository.User, error) {
	var (
		out *repository.User
		err error
	)
	r.t.with(func(td *tenantData) {
		inv, ok := td.invitations[id]
		if !ok || inv.Used || !inv.ExpiresAt.After(now) {
			err = repository.ErrNotFound
			return
		}
		out, err = createUser(td, in)
		if err != nil {
			return
		}
		inv.Used = true
	})
	return out, err
}

func (r *invitations) ListPending(_ context.Context, now time.Time) ([]repository.Invitation, error) {
	var out []repository.Invitation
	r.t.with(func(td *tenantData) {
		for _, inv := range td.invitations {
			if inv.Used || !inv.ExpiresAt.After(now) {
				continue
			}
			cp := *inv
			if inv.InvitedBy != nil {
				if u, ok := td.users[*inv.InvitedBy]; ok {
					cp.InvitedByName = u.FirstName + " " + u.LastName
				}
			}
			out = append(out, cp)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *invitations) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	r.t.with(func(td *tenantData) {
		if inv, ok := td.invitations[id]; ok && !inv.Used {
			delete(td.invitations, id)
			deleted = true
		}
	})
	return deleted, nil
}

// ─── Password resets ───

type resets struct{ t *tenantStore }

func (r *resets) Create(_ context.Context, tok repository.PasswordResetToken) error {
	r.t.with(func(td *tenantData) {
		cp := tok
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		td.resets[tok.ID] = &cp
	})
	return nil
}

func (r *resets) GetActiveByToken(_ context.Context, token string, now time.Time) (*repository.PasswordResetToken, error) {
	var out *repository.PasswordResetToken
	r.t.with(func(td *tenantData) {
		for _, tok := range td.resets {
			if tok.Token == token && !tok.Used && tok.ExpiresAt.After(now) {
				cp := *tok
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *resets) Consume(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	won := false
	r.t.with(func(td *tenantData) {
		if tok, ok := td.resets[id]; ok && !tok.Used && tok.ExpiresAt.After(now) {
			tok.Used = true
			won = true
		}
	})
	return won, nil
}

// ─── Files ───

type files struct{ t *tenantStore }

func (r *files) ListPlaintext(_ context.Context) ([]repository.PlaintextFile, error) {
	var out []repository.PlaintextFile
	r.t.with(func(td *tenantData) {
		for _, f := range td.files {
			if !f.encrypted {
				out = append(out, f.PlaintextFile)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StoragePath < out[j].StoragePath })
	return out, nil
}

func (r *files) MarkEncrypted(_ context.Context, f repository.PlaintextFile, meta repository.EncryptionMeta) error {
	err := repository.ErrNotFound
	r.t.with(func(td *tenantData) {
		if row, ok := td.files[f.ID]; ok {
			row.encrypted = true
			row.meta = meta
			err = nil
		}
	})
	return err
}
