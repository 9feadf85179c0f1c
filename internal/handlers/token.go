package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"flow-gateway/internal/auth"
	"flow-gateway/internal/config"
	"flow-gateway/internal/database"
	"flow-gateway/internal/models"
	svcerr "flow-gateway/pkg/errors"
)

// TokenHandler issues service tokens to registered clients
type TokenHandler struct {
	repo   database.Repository
	tokens *auth.TokenService
	cfg    *config.Config
	logger *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(repo database.Repository, tokens *auth.TokenService, cfg *config.Config, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		repo:   repo,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// HandleToken handles POST /api/v1/auth/token
// @Summary     Obtain a service token
// @Description Exchanges client credentials for a bearer token
// @Tags        auth
// @Accept      application/json
// @Produce     application/json
// @Param       request body     models.TokenRequest true "Client credentials"
// @Success     200     {object} models.TokenResponse
// @Failure     401     {object} map[string]string
// @Router      /api/v1/auth/token [post]
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcerr.Wrap(err, svcerr.ErrValidation))
		return
	}

	if req.ClientID == "" || req.ClientSecret == "" {
		writeError(w, svcerr.ErrInvalidCredentials)
		return
	}

	client, err := h.repo.GetClientByID(ctx, req.ClientID)
	if err != nil {
		h.logger.Error("Client lookup failed", zap.String("client_id", req.ClientID), zap.Error(err))
		writeError(w, svcerr.ErrInternalServer)
		return
	}
	if client == nil {
		writeError(w, svcerr.ErrInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(req.ClientSecret)); err != nil {
		h.logger.Debug("Client secret mismatch", zap.String("client_id", req.ClientID))
		writeError(w, svcerr.ErrInvalidCredentials)
		return
	}

	token, err := h.tokens.IssueServiceToken(client.ServiceName)
	if err != nil {
		h.logger.Error("Token issuance failed", zap.String("client_id", req.ClientID), zap.Error(err))
		writeError(w, svcerr.ErrInternalServer)
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.cfg.JWTExpiry.Seconds()),
	})
}
