package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brizzai/idverify/internal/auth/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	result *models.VerifiedPayload
	calls  int
}

func (s *stubProvider) Type() string { return "Dia" }

func (s *stubProvider) Verify(ctx context.Context, payload *models.RequestPayload) *models.VerifiedPayload {
	s.calls++
	return s.result
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	valid := &stubProvider{result: &models.VerifiedPayload{Valid: true, Record: models.Record{"id": "1"}}}
	invalid := &stubProvider{result: models.Invalid()}

	p := Instrument(valid, m)
	assert.Equal(t, "Dia", p.Type())
	assert.Equal(t, valid.result, p.Verify(context.Background(), &models.RequestPayload{}))
	assert.Equal(t, valid.result, p.Verify(context.Background(), &models.RequestPayload{}))
	Instrument(invalid, m).Verify(context.Background(), &models.RequestPayload{})

	assert.Equal(t, 2, valid.calls)
	assert.Equal(t, 1, invalid.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.verifications.WithLabelValues("Dia", ResultValid)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.verifications.WithLabelValues("Dia", ResultInvalid)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNewToleratesDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	second.Observe("Dia", false, 0)
	assert.Equal(t, float64(1), testutil.ToFloat64(first.verifications.WithLabelValues("Dia", ResultInvalid)))
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.Observe("Dia", true, 0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `idverify_verifications_total{provider="Dia",result="valid"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
