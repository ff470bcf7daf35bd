// Package app arma el grafo de dependencias a partir de la configuración:
// storage, cache, resolver de tenants, hashing, tokens, email, métricas,
// el orquestador de auth y la bóveda de media.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minispace/minispace/internal/auth"
	"github.com/minispace/minispace/internal/cache"
	"github.com/minispace/minispace/internal/config"
	"github.com/minispace/minispace/internal/devicetrust"
	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/email"
	"github.com/minispace/minispace/internal/jwt"
	"github.com/minispace/minispace/internal/media"
	"github.com/minispace/minispace/internal/metrics"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/security/filecrypt"
	"github.com/minispace/minispace/internal/security/password"
	"github.com/minispace/minispace/internal/store/pg"
	"github.com/minispace/minispace/internal/tenant"
)

// Deps son las dependencias de infraestructura ya abiertas.
type Deps struct {
	Store     repository.CredentialStore
	Directory repository.TenantDirectory
	// Cache puede ser nil: el resolver consulta siempre al directorio.
	Cache cache.Client
	// Registry nil => prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Email nil => se arma un SMTP si cfg.SMTP.Host está configurado.
	Email email.Sender
}

// App es la aplicación cableada.
type App struct {
	Config  *config.Config
	Store   repository.CredentialStore
	Tenants *tenant.Resolver
	Auth    *auth.Service
	Vault   *media.Vault
	Keys    *filecrypt.Keyring
	Hasher  *password.Hasher
	Metrics *metrics.Metrics
	Cookies devicetrust.CookieConfig

	closers []func()
}

// Open abre pg y el cache según cfg y arma la App.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
		MaxConns:        cfg.Storage.MaxConns,
		MinConns:        cfg.Storage.MinConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, err
	}
	c, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.MemoryTTL(),
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	a, err := New(cfg, Deps{Store: st, Directory: st.Directory(), Cache: c})
	if err != nil {
		_ = c.Close()
		st.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = c.Close() }, st.Close)
	return a, nil
}

// New arma la App sobre dependencias ya abiertas. cfg debe haber pasado por
// Validate (el master key se lee de ahí).
func New(cfg *config.Config, d Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if d.Store == nil || d.Directory == nil {
		return nil, errors.New("app: store and directory are required")
	}
	log := logger.L().With(logger.Layer("app"))

	keys, err := filecrypt.NewKeyring(cfg.MasterKey())
	if err != nil {
		return nil, fmt.Errorf("app: keyring: %w", err)
	}

	m, err := metrics.New(d.Registry)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	policy := password.Policy{
		MinLength:     cfg.Security.PasswordPolicy.MinLength,
		RequireUpper:  cfg.Security.PasswordPolicy.RequireUpper,
		RequireLower:  cfg.Security.PasswordPolicy.RequireLower,
		RequireDigit:  cfg.Security.PasswordPolicy.RequireDigit,
		RequireSymbol: cfg.Security.PasswordPolicy.RequireSymbol,
	}
	if p := strings.TrimSpace(cfg.Security.PasswordBlacklistPath); p != "" {
		bl, err := password.LoadBlacklist(p)
		if err != nil {
			return nil, fmt.Errorf("app: password blacklist: %w", err)
		}
		policy.Blacklist = bl
		log.Info("password blacklist loaded", logger.Count(bl.Len()))
	}

	codec, err := jwt.NewCodec([]byte(cfg.JWT.Secret), []byte(cfg.JWT.RefreshSecret), cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("app: jwt: %w", err)
	}

	sender := d.Email
	if sender == nil && cfg.SMTPEnabled() {
		tr := email.NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		tr.FromName = cfg.SMTP.FromName
		if cfg.SMTP.TLS != "" && cfg.SMTP.TLS != "auto" {
			tr.TLSMode = cfg.SMTP.TLS
		}
		tr.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = email.NewMailer(tr)
	}
	if sender == nil {
		log.Warn("smtp not configured: logins will fail with email service unavailable")
	}

	hasher := password.NewHasher(cfg.Security.HashConcurrency)
	resolver := tenant.NewResolver(d.Directory, d.Cache, cfg.TenantTTL())

	svc, err := auth.NewService(auth.Deps{
		Store:         d.Store,
		Tenants:       resolver,
		Hasher:        hasher,
		Tokens:        codec,
		Email:         sender,
		Metrics:       m,
		Policy:        policy,
		BaseURL:       cfg.App.BaseURL,
		DefaultLocale: cfg.App.DefaultLocale,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:  cfg,
		Store:   d.Store,
		Tenants: resolver,
		Auth:    svc,
		Vault:   media.NewVault(cfg.Media.Dir, keys, m),
		Keys:    keys,
		Hasher:  hasher,
		Metrics: m,
		Cookies: devicetrust.CookieConfig{
			Name:   cfg.Security.DeviceCookie.Name,
			Domain: cfg.Security.DeviceCookie.Domain,
			Secure: !cfg.Security.DeviceCookie.Insecure,
		},
	}, nil
}

// Close libera lo abierto por Open, en orden inverso.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
