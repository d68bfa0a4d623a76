package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/application"
	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/pkg/response"
	"github.com/prasatya/authflow/pkg/validation"
)

type ProfileHandler struct {
	Svc    *application.ProfileService
	Logger *logrus.Logger
}

func NewProfileHandler(svc *application.ProfileService, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{Svc: svc, Logger: logger}
}

func profileView(p *entity.Profile) gin.H {
	return gin.H{
		"id":                       p.ID,
		"name":                     p.Name,
		"email":                    p.Email,
		"phone":                    p.Phone,
		"address":                  p.Address,
		"city":                     p.City,
		"postcode":                 p.Postcode,
		"country":                  p.Country,
		"status":                   p.Status,
		"role":                     p.Role,
		"requires_password_change": p.RequiresPasswordChange,
		"updated_at":               p.UpdatedAt,
	}
}

// Get GET /api/profile (auth required)
func (h *ProfileHandler) Get(c *gin.Context) {
	uid := c.GetString("userID")
	p, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "profile not found", nil)
		return
	}
	response.Success(c, http.StatusOK, profileView(p), "profile", nil)
}

// updateProfileRequest is a partial update: omitted fields are left
// untouched, present fields are written as sent (empty string clears).
type updateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=120"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    *string `json:"phone" binding:"omitempty,max=32"`
	Address  *string `json:"address" binding:"omitempty,max=255"`
	City     *string `json:"city" binding:"omitempty,max=120"`
	Postcode *string `json:"postcode" binding:"omitempty,max=16"`
	Country  *string `json:"country" binding:"omitempty,max=120"`
}

// Update PUT /api/profile (auth required)
// Responds with the stored profile and the list of fields that actually
// changed; the change notice email carries the same list.
func (h *ProfileHandler) Update(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	p, changed, err := h.Svc.UpdateProfile(c.Request.Context(), uid, application.UpdateProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		City:     req.City,
		Postcode: req.Postcode,
		Country:  req.Country,
	})
	if err != nil {
		if errors.Is(err, application.ErrProfileNotFound) {
			response.Error[any](c, http.StatusNotFound, "profile not found", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_id", uid).Error("profile update failed")
		response.Error[any](c, http.StatusInternalServerError, "profile update failed", nil)
		return
	}

	if changed == nil {
		changed = []string{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"profile":        profileView(p),
		"changed_fields": changed,
	}, "profile updated", nil)
}

// Search GET /api/admin/profiles/search?q=&size= (admin only)
func (h *ProfileHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "q is required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	hits, err := h.Svc.SearchProfiles(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Warn("profile search failed")
		response.Error[any](c, http.StatusBadGateway, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"hits": hits}, "search results", map[string]any{"count": len(hits)})
}
