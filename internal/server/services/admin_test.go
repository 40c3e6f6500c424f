package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/config"
)

func newAdminService(t *testing.T, password string) *AdminService {
	t.Helper()
	cfg := &config.Config{
		AdminUser:                   "admin",
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
	}
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.AdminPassHash = string(h)
	}
	return NewAdminService(cfg, logging.NewDiscardLogger())
}

func TestAdminLogin_Success(t *testing.T) {
	s := newAdminService(t, "hunter2")

	token, err := s.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	sub, err := s.Authorize(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
}

func TestAdminLogin_Failures(t *testing.T) {
	s := newAdminService(t, "hunter2")

	for _, c := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "hunter2"},
		{"", ""},
	} {
		_, err := s.Login(context.Background(), c.user, c.pass)
		assert.ErrorIs(t, err, common.ErrorUnauthorized, "%+v", c)
	}
}

func TestAdminLogin_NoHashConfigured(t *testing.T) {
	s := newAdminService(t, "")
	_, err := s.Login(context.Background(), "admin", "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestAdminAuthorize_RejectsGarbage(t *testing.T) {
	s := newAdminService(t, "x")
	_, err := s.Authorize("garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
