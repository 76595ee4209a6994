package users

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"aiostreams/internal/apierror"
	"aiostreams/pkg/database"
	"aiostreams/pkg/models"
)

type Handler struct {
	Repo   *Repo
	Tokens TokenService
}

func NewHandler(repo *Repo, tokens TokenService) *Handler {
	return &Handler{Repo: repo, Tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/user", h.create)
	rg.POST("/user/login", h.login)

	authed := rg.Group("/user", AuthMiddleware(h.Tokens))
	authed.GET("", h.get)
	authed.PUT("", h.update)
	authed.DELETE("", h.remove)
}

// ToAPIError maps repository errors to client-facing errors.
func ToAPIError(err error) *apierror.APIError {
	switch {
	case errors.Is(err, database.ErrNotReady):
		return apierror.StorageNotReady()
	case errors.Is(err, ErrUserNotFound):
		return apierror.UserNotFound()
	case errors.Is(err, ErrInvalidPassword):
		return apierror.InvalidPassword()
	default:
		return apierror.Internal(err)
	}
}

type createReq struct {
	Password string          `json:"password"`
	Config   models.UserData `json:"config"`
}

func validPassword(p string) bool {
	return len(p) >= 8 && len(p) <= 72
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Abort(c, apierror.BadRequest("invalid json"))
		return
	}
	if !validPassword(req.Password) {
		apierror.Abort(c, apierror.BadRequest("password must be 8-72 chars"))
		return
	}

	id := uuid.NewString()
	req.Config.UUID = id
	if err := req.Config.Validate(); err != nil {
		apierror.Abort(c, apierror.InvalidConfig(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	u := User{UUID: id, PasswordHash: string(hash), Config: req.Config}
	if err := h.Repo.CreateUser(c.Request.Context(), u); err != nil {
		apierror.Abort(c, ToAPIError(err))
		return
	}

	token, exp, err := h.Tokens.Sign(id)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"uuid":       id,
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

type loginReq struct {
	UUID     string `json:"uuid"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Abort(c, apierror.BadRequest("invalid json"))
		return
	}

	id := strings.TrimSpace(req.UUID)
	if id == "" || req.Password == "" {
		apierror.Abort(c, apierror.BadRequest("uuid and password required"))
		return
	}

	if _, err := h.Repo.Authenticate(c.Request.Context(), id, req.Password); err != nil {
		apierror.Abort(c, ToAPIError(err))
		return
	}

	token, exp, err := h.Tokens.Sign(id)
	if err != nil {
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) get(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		apierror.Abort(c, apierror.Unauthorized())
		return
	}

	u, err := h.Repo.GetByUUID(c.Request.Context(), claims.UUID)
	if err != nil {
		apierror.Abort(c, ToAPIError(err))
		return
	}
	if u == nil {
		apierror.Abort(c, apierror.UserNotFound())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uuid":        u.UUID,
		"config":      u.Config,
		"created_at":  u.CreatedAt.UTC().Format(time.RFC3339),
		"accessed_at": u.AccessedAt.UTC().Format(time.RFC3339),
	})
}

type updateReq struct {
	Config models.UserData `json:"config"`
}

func (h *Handler) update(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		apierror.Abort(c, apierror.Unauthorized())
		return
	}

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Abort(c, apierror.BadRequest("invalid json"))
		return
	}

	req.Config.UUID = claims.UUID
	if err := req.Config.Validate(); err != nil {
		apierror.Abort(c, apierror.InvalidConfig(err))
		return
	}

	if err := h.Repo.UpdateConfig(c.Request.Context(), claims.UUID, req.Config); err != nil {
		apierror.Abort(c, ToAPIError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "config updated"})
}

func (h *Handler) remove(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		apierror.Abort(c, apierror.Unauthorized())
		return
	}

	if err := h.Repo.DeleteUser(c.Request.Context(), claims.UUID); err != nil {
		apierror.Abort(c, ToAPIError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "user deleted"})
}
