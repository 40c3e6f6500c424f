package services

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/auth"
	"github.com/dmitrijs2005/autolot/internal/server/config"
)

// AdminService authenticates the single catalog administrator and issues
// the capability token required by admin operations.
type AdminService struct {
	user                        string
	passHash                    string
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
}

func NewAdminService(cfg *config.Config, logger logging.Logger) *AdminService {
	return &AdminService{
		user:                        cfg.AdminUser,
		passHash:                    cfg.AdminPassHash,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      logger.With("component", "admin"),
	}
}

// Login checks the credentials and returns a signed token. Every failure,
// including a server without a configured password hash, is reported as
// common.ErrorUnauthorized.
func (s *AdminService) Login(ctx context.Context, user, password string) (string, error) {
	if s.passHash == "" {
		s.logger.Warn(ctx, "admin login attempted but no password hash is configured")
		return "", common.ErrorUnauthorized
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.user)) == 1
	passOK, err := auth.CheckPassword(s.passHash, password)
	if err != nil {
		s.logger.Error(ctx, "admin password hash is malformed", "error", err)
		return "", common.ErrorUnauthorized
	}
	if !userOK || !passOK {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(s.user, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	s.logger.Info(ctx, "admin logged in", "user", s.user)
	return token, nil
}

// Authorize validates a capability token and returns its subject.
func (s *AdminService) Authorize(token string) (string, error) {
	return auth.ParseToken(token, s.jwtSecret)
}
