package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Login("acme", LoginSuccess)
	m.Login("acme", LoginSuccess)
	m.Login("acme", LoginFailed)
	m.TwoFactorEmailSent("acme")
	m.Refresh("acme", RefreshRejected)
	m.DecryptFailure("other")
	m.ObserveOp("Login", time.Now())

	require.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("acme", LoginSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues("acme", LoginFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TwoFactorEmails.WithLabelValues("acme")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("acme", RefreshRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DecryptFailures.WithLabelValues("other")))
	require.Equal(t, 1, testutil.CollectAndCount(m.OpLatency))
}

func TestSeparateRegistriesAreIndependent(t *testing.T) {
	a, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	b, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	a.InvitationCreated("acme")
	require.Equal(t, 1.0, testutil.ToFloat64(a.Invitations.WithLabelValues("acme")))
	require.Equal(t, 0.0, testutil.ToFloat64(b.Invitations.WithLabelValues("acme")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Login("acme", LoginSuccess)
	m.PasswordReset("acme", "request")
	m.ObserveOp("Refresh", time.Now())
}

func TestNew_SameRegistryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	b.Login("acme", LoginSuccess)
	require.Equal(t, 1.0, testutil.ToFloat64(a.Logins.WithLabelValues("acme", LoginSuccess)))
}
