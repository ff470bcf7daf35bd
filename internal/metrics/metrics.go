// Package metrics define los contadores Prometheus del núcleo de identidad.
// No hay estado global: cada proceso crea un *Metrics y lo inyecta.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UnknownTenant reemplaza el slug cuando el tenant no resolvió, así la
// label tenant no crece con input arbitrario.
const UnknownTenant = "_unknown"

// Valores de la label status de logins_total.
const (
	LoginSuccess    = "success"
	Login2FASent    = "2fa_sent"
	LoginFailed     = "failed"
	Login2FAFailed  = "2fa_failed"
	LoginDeviceSkip = "device_trusted"
)

// Valores de la label outcome de refresh_total.
const (
	RefreshRotated  = "rotated"
	RefreshRejected = "rejected"
)

// Metrics agrupa los colectores. Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	Logins          *prometheus.CounterVec
	TwoFactorEmails *prometheus.CounterVec
	Invitations     *prometheus.CounterVec
	PasswordResets  *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	DecryptFailures *prometheus.CounterVec
	OpLatency       *prometheus.HistogramVec
}

// New crea los colectores y los registra en reg (DefaultRegisterer si nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minispace_logins_total",
			Help: "Intentos de login por tenant y resultado",
		}, []string{"tenant", "status"}),
		TwoFactorEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minispace_2fa_emails_total",
			Help: "Códigos 2FA enviados",
		}, []string{"tenant"}),
		Invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minispace_invitations_total",
			Help: "Invitaciones creadas",
		}, []string{"tenant"}),
		PasswordResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minispace_password_resets_total",
			Help: "Resets de contraseña por tipo (request, completed, admin)",
		}, []string{"tenant", "kind"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minispace_refresh_total",
			Help: "Rotaciones de refresh token por resultado",
		}, []string{"tenant", "outcome"}),
		DecryptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minispace_decrypt_failures_total",
			Help: "Fallas de autenticación AEAD al descifrar archivos",
		}, []string{"tenant"}),
		OpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minispace_auth_op_duration_ms",
			Help:    "Latencia de operaciones de auth en milisegundos",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"op"}),
	}
	var err error
	if m.Logins, err = register(reg, m.Logins); err != nil {
		return nil, err
	}
	if m.TwoFactorEmails, err = register(reg, m.TwoFactorEmails); err != nil {
		return nil, err
	}
	if m.Invitations, err = register(reg, m.Invitations); err != nil {
		return nil, err
	}
	if m.PasswordResets, err = register(reg, m.PasswordResets); err != nil {
		return nil, err
	}
	if m.Refreshes, err = register(reg, m.Refreshes); err != nil {
		return nil, err
	}
	if m.DecryptFailures, err = register(reg, m.DecryptFailures); err != nil {
		return nil, err
	}
	if m.OpLatency, err = register(reg, m.OpLatency); err != nil {
		return nil, err
	}
	return m, nil
}

// register registra c; si ya había uno igual en reg devuelve el existente.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) Login(tenant, status string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(tenant, status).Inc()
}

func (m *Metrics) TwoFactorEmailSent(tenant string) {
	if m == nil {
		return
	}
	m.TwoFactorEmails.WithLabelValues(tenant).Inc()
}

func (m *Metrics) InvitationCreated(tenant string) {
	if m == nil {
		return
	}
	m.Invitations.WithLabelValues(tenant).Inc()
}

func (m *Metrics) PasswordReset(tenant, kind string) {
	if m == nil {
		return
	}
	m.PasswordResets.WithLabelValues(tenant, kind).Inc()
}

func (m *Metrics) Refresh(tenant, outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(tenant, outcome).Inc()
}

func (m *Metrics) DecryptFailure(tenant string) {
	if m == nil {
		return
	}
	m.DecryptFailures.WithLabelValues(tenant).Inc()
}

// ObserveOp registra la duración desde start. Uso: defer m.ObserveOp("Login", time.Now()).
func (m *Metrics) ObserveOp(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OpLatency.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}
