package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input"), false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("rate"), 429)), true},
		{"eris wrapped", eris.Wrap(NewTransientError(errors.New("rate"), 429), "source: fetch"), true},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"io timeout text", errors.New("read tcp 10.0.0.1:5432: i/o timeout"), true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg connection class", &pgconn.PgError{Code: "08006"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pg syntax", &pgconn.PgError{Code: "42601"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(eris.Wrap(&pgconn.PgError{Code: "23505"}, "registry: create")))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("dup")))
}

func TestNewFailure(t *testing.T) {
	f := NewFailure("add_source", "ACME", NewTransientError(errors.New("timeout"), 504))
	assert.Equal(t, "add_source", f.Operation)
	assert.Equal(t, "ACME", f.Key)
	assert.Equal(t, "timeout", f.Error)
	assert.True(t, f.Transient())
	assert.False(t, f.At.IsZero())

	f = NewFailure("create", "X", errors.New("bad"))
	assert.Equal(t, ClassPermanent, f.Class)
}
