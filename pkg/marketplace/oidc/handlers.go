// Package oidc signs users in through external identity providers and
// exchanges the provider's ID token for a marketplace session token.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/config"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// StateCookie carries the login state between the redirect and the callback
const StateCookie = "marketplace_oidc_state"

const stateTTL = 10 * time.Minute

var ErrUnknownProvider = errors.New("unknown identity provider")

// registration is a provider the server knows how to talk to
type registration struct {
	Key    string
	Name   string
	Issuer string
	Client config.OIDCClient
}

type providerConfig struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// StateData is round-tripped through the provider and checked against the cookie
type StateData struct {
	Provider  string `json:"provider"`
	ReturnURL string `json:"return_url"`
	Nonce     string `json:"nonce"`
}

// Handler handles identity provider logins
type Handler struct {
	db      *gorm.DB
	tokens  *auth.TokenIssuer
	cfg     config.Auth
	baseURL string
	logger  *zap.Logger

	registry map[string]registration
	order    []string

	mu        sync.Mutex
	providers map[string]*providerConfig
}

// NewHandler creates an OIDC handler for the providers configured in cfg.
// Providers without a client ID are disabled. Discovery runs on first use.
func NewHandler(db *gorm.DB, tokens *auth.TokenIssuer, cfg config.Auth, baseURL string, logger *zap.Logger) *Handler {
	h := &Handler{
		db:        db,
		tokens:    tokens,
		cfg:       cfg,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		registry:  make(map[string]registration),
		providers: make(map[string]*providerConfig),
	}

	known := []registration{
		{Key: "google", Name: "Google", Issuer: "https://accounts.google.com", Client: cfg.Google},
		{Key: "kakao", Name: "Kakao", Issuer: "https://kauth.kakao.com", Client: cfg.Kakao},
	}
	for _, r := range known {
		if r.Client.ClientID == "" {
			continue
		}
		if r.Client.Issuer != "" {
			r.Issuer = r.Client.Issuer
		}
		h.registry[r.Key] = r
		h.order = append(h.order, r.Key)
	}
	return h
}

// provider returns the initialized provider, running discovery on first use.
// Failed discovery is not cached.
func (h *Handler) provider(ctx context.Context, key string) (*providerConfig, error) {
	reg, ok := h.registry[key]
	if !ok {
		return nil, ErrUnknownProvider
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if pc, ok := h.providers[key]; ok {
		return pc, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, reg.Issuer)
	if err != nil {
		return nil, err
	}

	pc := &providerConfig{
		config: oauth2.Config{
			ClientID:     reg.Client.ClientID,
			ClientSecret: reg.Client.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  h.baseURL + "/api/auth/" + key + "/callback",
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: reg.Client.ClientID}),
	}
	h.providers[key] = pc
	return pc, nil
}

// ProviderResponse represents a login option
type ProviderResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ListProviders returns the enabled identity providers
// @Summary List login providers
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	responses := make([]ProviderResponse, 0, len(h.order))
	for _, key := range h.order {
		responses = append(responses, ProviderResponse{Key: key, Name: h.registry[key].Name})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "providers": responses})
}

// Login redirects to the provider's authorization endpoint
// @Summary Start a provider login
// @Tags auth
// @Param provider path string true "google or kakao"
// @Param return_url query string false "Relative path to return to after login"
// @Success 302
// @Failure 404 {object} map[string]interface{} "Provider not enabled"
// @Router /auth/{provider}/login [get]
func (h *Handler) Login(c *gin.Context) {
	key := c.Param("provider")
	pc, err := h.provider(c.Request.Context(), key)
	if err != nil {
		h.providerError(c, key, err)
		return
	}

	nonce, err := randomString(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to start login"})
		return
	}
	stateJSON, _ := json.Marshal(StateData{
		Provider:  key,
		ReturnURL: safeReturnURL(c.Query("return_url")),
		Nonce:     nonce,
	})
	state := base64.RawURLEncoding.EncodeToString(stateJSON)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(StateCookie, state, int(stateTTL.Seconds()), "/api/auth", "", h.secure(), true)
	c.Redirect(http.StatusFound, pc.config.AuthCodeURL(state, oidc.Nonce(nonce)))
}

// Callback completes a provider login
// @Summary Provider login callback
// @Tags auth
// @Param provider path string true "google or kakao"
// @Param code query string true "Authorization code"
// @Param state query string true "Login state"
// @Success 200 {object} map[string]interface{}
// @Success 302
// @Failure 400 {object} map[string]interface{} "Invalid state or provider error"
// @Router /auth/{provider}/callback [get]
func (h *Handler) Callback(c *gin.Context) {
	key := c.Param("provider")

	stateParam := c.Query("state")
	cookie, err := c.Cookie(StateCookie)
	if err != nil || stateParam == "" || cookie != stateParam {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid state"})
		return
	}
	c.SetCookie(StateCookie, "", -1, "/api/auth", "", h.secure(), true)

	stateData, err := decodeState(stateParam)
	if err != nil || stateData.Provider != key {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid state"})
		return
	}

	code := c.Query("code")
	if code == "" {
		errorDesc := c.Query("error_description")
		if errorDesc == "" {
			errorDesc = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Authentication failed: " + errorDesc})
		return
	}

	ctx := c.Request.Context()
	pc, err := h.provider(ctx, key)
	if err != nil {
		h.providerError(c, key, err)
		return
	}

	oauth2Token, err := pc.config.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("token exchange failed", zap.String("provider", key), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to exchange token"})
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "No ID token in response"})
		return
	}

	idToken, err := pc.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		h.logger.Warn("id token rejected", zap.String("provider", key), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Failed to verify ID token"})
		return
	}
	if idToken.Nonce != stateData.Nonce {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid nonce"})
		return
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to parse claims"})
		return
	}
	if claims.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Email not provided by identity provider"})
		return
	}

	user, err := h.findOrCreateUser(ctx, key, idToken.Subject, claims)
	if err != nil {
		h.logger.Error("provision user", zap.String("provider", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process user"})
		return
	}

	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate token"})
		return
	}

	h.logger.Info("user signed in",
		zap.String("provider", key),
		zap.Uint("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, token, int(h.tokens.TTL().Seconds()), "/", "", h.secure(), true)

	if stateData.ReturnURL != "" {
		c.Redirect(http.StatusFound, stateData.ReturnURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    auth.ToUserResponse(user),
	})
}

// Claims are the ID token claims used to provision a user. Kakao sends
// nickname instead of name.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Picture  string `json:"picture"`
}

func (cl Claims) displayName() string {
	switch {
	case strings.TrimSpace(cl.Name) != "":
		return strings.TrimSpace(cl.Name)
	case strings.TrimSpace(cl.Nickname) != "":
		return strings.TrimSpace(cl.Nickname)
	default:
		return strings.Split(cl.Email, "@")[0]
	}
}

// findOrCreateUser resolves the provider subject to a user, linking by email
// when the subject is new. Emails listed in ADMIN_EMAILS are promoted to
// ADMIN on every login.
func (h *Handler) findOrCreateUser(ctx context.Context, provider, subject string, claims Claims) (*models.User, error) {
	db := h.db.WithContext(ctx)
	var user models.User

	var identity models.OIDCIdentity
	err := db.Where("provider = ? AND subject = ?", provider, subject).First(&identity).Error
	switch {
	case err == nil:
		if err := db.First(&user, identity.UserID).Error; err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	default:
		err = db.Transaction(func(tx *gorm.DB) error {
			err := tx.Where("email = ?", claims.Email).First(&user).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				user = models.User{
					Email: claims.Email,
					Name:  claims.displayName(),
					Image: claims.Picture,
					Role:  models.RoleUser,
				}
				err = tx.Create(&user).Error
			}
			if err != nil {
				return err
			}
			return tx.Create(&models.OIDCIdentity{
				UserID:   user.ID,
				Provider: provider,
				Subject:  subject,
				Email:    claims.Email,
			}).Error
		})
		if err != nil {
			return nil, err
		}
	}

	if user.Role != models.RoleAdmin && h.cfg.IsAdminEmail(user.Email) {
		if err := db.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
			return nil, err
		}
		user.Role = models.RoleAdmin
		h.logger.Info("user promoted to admin", zap.Uint("user_id", user.ID))
	}

	return &user, nil
}

func (h *Handler) providerError(c *gin.Context, key string, err error) {
	if errors.Is(err, ErrUnknownProvider) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Provider not enabled"})
		return
	}
	h.logger.Error("provider discovery failed", zap.String("provider", key), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Provider unavailable"})
}

func (h *Handler) secure() bool {
	return strings.HasPrefix(h.baseURL, "https://")
}

// RegisterRoutes registers public login routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers", h.ListProviders)
	rg.GET("/:provider/login", h.Login)
	rg.GET("/:provider/callback", h.Callback)
}

func decodeState(s string) (*StateData, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var data StateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// safeReturnURL keeps only same-site relative paths
func safeReturnURL(u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return ""
	}
	return u
}

func randomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
