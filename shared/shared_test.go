package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := TokenIssuer{Secret: []byte("0123456789abcdef0123"), TokenTTL: time.Hour}
	properties := gopter.NewProperties(nil)

	properties.Property("signed tokens verify with the same subject and role", prop.ForAll(
		func(subject, role string) bool {
			token, expiresAt, err := issuer.Sign(subject, role)
			if err != nil || expiresAt.Before(time.Now()) {
				return false
			}
			claims, err := issuer.Verify(token)
			return err == nil && claims.Subject == subject && claims.Role == role
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := TokenIssuer{Secret: []byte("0123456789abcdef0123"), TokenTTL: time.Hour}
	token, _, err := issuer.Sign("ops", "admin")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	other := TokenIssuer{Secret: []byte("another-secret-value"), TokenTTL: time.Hour}
	if _, err := other.Verify(token); err == nil {
		t.Error("token verified under a different secret")
	}
	if _, err := issuer.Verify(token + "x"); err == nil {
		t.Error("tampered token verified")
	}

	expired := TokenIssuer{Secret: issuer.Secret, TokenTTL: -time.Minute}
	stale, _, err := expired.Sign("ops", "admin")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := issuer.Verify(stale); err == nil {
		t.Error("expired token verified")
	}

	if _, _, err := (TokenIssuer{}).Sign("ops", "admin"); err == nil {
		t.Error("signing without a secret succeeded")
	}
}

func TestHTTPStatusFollowsCategory(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewValidationError("BAD", "bad", "svc", "op"), http.StatusBadRequest},
		{NewNotFoundError("MISSING", "missing", "svc", "op"), http.StatusNotFound},
		{NewServiceError(ErrorCategoryAuthentication, "AUTH", "no", "svc", "op", false, nil), http.StatusUnauthorized},
		{NewServiceError(ErrorCategoryConflict, "BUSY", "busy", "svc", "op", true, nil), http.StatusConflict},
		{NewServiceError(ErrorCategoryDatabase, "DB", "down", "svc", "op", true, nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("MISSING", "missing", "svc", "op")), http.StatusNotFound},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}

	if !IsRetryableError(errors.New("pq: deadlock detected")) {
		t.Error("deadlock should be retryable")
	}
	if IsRetryableError(NewValidationError("BAD", "timeout in text", "svc", "op")) {
		t.Error("validation errors are never retryable")
	}
}

func TestValidateStructListsFields(t *testing.T) {
	type payload struct {
		Name  string  `validate:"required"`
		Price float64 `validate:"gte=0"`
	}

	if err := ValidateStruct(payload{Name: "Tata", Price: 10}, "svc", "op"); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	err := ValidateStruct(payload{Price: -1}, "svc", "op")
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if serviceErr.Category != ErrorCategoryValidation {
		t.Errorf("category = %s", serviceErr.Category)
	}
	details, ok := serviceErr.Details.([]string)
	if !ok || len(details) != 2 {
		t.Errorf("details = %#v, want two field messages", serviceErr.Details)
	}
}

func TestLoadFromYAMLKeepsDefaults(t *testing.T) {
	cfg := NewDefaultUnifiedConfiguration()
	doc := []byte(`
cache:
  default_ttl: 90s
history:
  detail_gmp_days: 14
live:
  send_buffer: -4
`)
	if err := cfg.LoadFromYAML(doc); err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}

	if cfg.Cache.DefaultTTL != 90*time.Second {
		t.Errorf("default_ttl = %v", cfg.Cache.DefaultTTL)
	}
	if cfg.History.DetailGMPDays != 14 {
		t.Errorf("detail_gmp_days = %d", cfg.History.DetailGMPDays)
	}
	if cfg.Live.SendBuffer != 16 {
		t.Errorf("negative send_buffer not replaced: %d", cfg.Live.SendBuffer)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Cache.KeyPrefix != "ipo-dalal:" {
		t.Errorf("untouched defaults changed: %+v", cfg)
	}

	if err := cfg.LoadFromYAML([]byte("cache: [")); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestServiceMetricsTrack(t *testing.T) {
	m := NewServiceMetrics("Test")
	_ = m.Track("b", func() error { return nil })
	_ = m.Track("a", func() error { return errors.New("boom") })
	_ = m.Track("a", func() error { return nil })

	snapshot := m.GetSnapshot()
	if len(snapshot.Operations) != 2 || snapshot.Operations[0].Operation != "a" {
		t.Fatalf("operations = %+v", snapshot.Operations)
	}
	a := snapshot.Operations[0]
	if a.TotalRequests != 2 || a.FailedRequests != 1 || a.SuccessRate != 50 {
		t.Errorf("a = %+v", a)
	}
	if a.LastFailure == nil || a.LastSuccess == nil {
		t.Error("last success and failure should both be set")
	}

	m.Reset()
	if len(m.GetSnapshot().Operations) != 0 {
		t.Error("Reset kept operations")
	}
}
