package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cifraxlab/cifrax/internal/accounts"
	"github.com/cifraxlab/cifrax/internal/auth"
	"github.com/cifraxlab/cifrax/internal/backup"
	"github.com/cifraxlab/cifrax/internal/records"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityContextKey = "cifrax_identity"

var (
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingAccountService = errors.New("account service dependency required")
	errMissingRecordService  = errors.New("record service dependency required")
	errMissingBackupService  = errors.New("backup service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates session tokens.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, identity auth.Identity) (string, int64, error)
	ValidateToken(token string) (auth.Identity, error)
}

// Dependencies wires the HTTP layer to its collaborating services.
type Dependencies struct {
	TokenManager   SessionTokenManager
	Accounts       *accounts.Service
	Records        *records.Service
	Backup         *backup.Service
	Dispatcher     *RealtimeDispatcher
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewHTTPHandler builds the full route tree.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Records == nil {
		return nil, errMissingRecordService
	}
	if deps.Backup == nil {
		return nil, errMissingBackupService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewRealtimeDispatcher()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenManager,
		accounts:   deps.Accounts,
		records:    deps.Records,
		backup:     deps.Backup,
		dispatcher: dispatcher,
		logger:     logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/groups", handler.handleListGroups)
	protected.POST("/groups", handler.handleCreateGroup)
	protected.DELETE("/groups/:id", handler.handleDeleteGroup)
	protected.GET("/combinations", handler.handleListCombinations)
	protected.POST("/combinations", handler.handleCreateCombination)
	protected.PUT("/combinations/:id", handler.handleUpdateCombination)
	protected.DELETE("/combinations/:id", handler.handleDeleteCombination)
	protected.GET("/stats", handler.handleStats)
	protected.GET("/events", handler.handleEvents)

	admin := protected.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.GET("/users", handler.handleAdminListUsers)
	admin.DELETE("/users/:id", handler.handleAdminDeleteUser)
	admin.GET("/combinations", handler.handleAdminListCombinations)
	admin.DELETE("/combinations/:id", handler.handleAdminDeleteCombination)
	admin.GET("/overview", handler.handleAdminOverview)
	admin.GET("/health", handler.handleAdminHealth)
	admin.GET("/export", handler.handleAdminExport)
	admin.POST("/import", handler.handleAdminImport)
	admin.POST("/reset", handler.handleAdminReset)

	return router, nil
}

type httpHandler struct {
	tokens     SessionTokenManager
	accounts   *accounts.Service
	records    *records.Service
	backup     *backup.Service
	dispatcher *RealtimeDispatcher
	logger     *zap.Logger
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, account)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, account)
}

func (h *httpHandler) respondWithToken(c *gin.Context, status int, account accounts.Account) {
	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), auth.Identity{
		AccountID: account.AccountID,
		Email:     account.Email,
		Role:      string(account.Role),
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(status, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Role:        string(account.Role),
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

// requireAdmin gates routing only; the record services scope every query by
// owner regardless of role.
func (h *httpHandler) requireAdmin(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok || identity.Role != string(accounts.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func currentIdentity(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}

func (h *httpHandler) currentOwner(c *gin.Context) (records.OwnerID, bool) {
	identity, ok := currentIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	ownerID, err := records.NewOwnerID(identity.AccountID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return ownerID, true
}

// respondError maps service failures onto the error taxonomy: validation
// failures 400, missing records 404, duplicates 409, everything else 500.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound) || errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, records.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_name", "message": err.Error()})
	case errors.Is(err, accounts.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_email"})
	case errors.Is(err, records.ErrInvalidName),
		errors.Is(err, records.ErrInvalidColor),
		errors.Is(err, records.ErrInvalidNumber),
		errors.Is(err, records.ErrInvalidRecordID),
		errors.Is(err, records.ErrInvalidOwnerID),
		errors.Is(err, accounts.ErrInvalidEmail),
		errors.Is(err, accounts.ErrWeakPassword),
		errors.Is(err, backup.ErrInvalidDocument),
		errors.Is(err, backup.ErrInvalidMode),
		errors.Is(err, backup.ErrUnsupportedVersion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
