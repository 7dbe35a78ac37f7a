package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ubika-app/directory-core/internal/app"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/timeout"
)

// maxImageBytes caps listing image uploads.
const maxImageBytes = 5 << 20

type Handler struct {
	app *app.App
}

func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type businessRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	WhatsApp    string `json:"whatsapp"`
	Location    string `json:"location"`
	Website     string `json:"website"`
	Instagram   string `json:"instagram"`
	Facebook    string `json:"facebook"`
}

type businessPatchRequest struct {
	Name          *string    `json:"name"`
	Category      *string    `json:"category"`
	Description   *string    `json:"description"`
	ImageURL      *string    `json:"image_url"`
	WhatsApp      *string    `json:"whatsapp"`
	Location      *string    `json:"location"`
	Website       *string    `json:"website"`
	Instagram     *string    `json:"instagram"`
	Facebook      *string    `json:"facebook"`
	Status        *string    `json:"status"`
	Plan          *string    `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`
	AdminNote     *string    `json:"admin_note"`
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"loading":          h.app.Loading(),
		"connection_error": h.app.ConnectionError(),
	})
}

func (h *Handler) Retry(c *gin.Context) {
	h.app.Retry(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "retrying"})
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.app.SignUp(c.Request.Context(), gateway.Credentials{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusAccepted, gin.H{
			"status": "confirmation_pending",
			"message": "Te enviamos un correo de confirmación. " +
				"Verifica tu cuenta antes de iniciar sesión.",
		})
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.app.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.app.SignOut(c.Request.Context()); err != nil {
		// Local state is already cleared; report success anyway.
		c.JSON(http.StatusOK, gin.H{"status": "signed_out", "remote": "failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

func (h *Handler) Me(c *gin.Context) {
	u := h.app.CurrentUser()
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No hay una sesión activa."})
		return
	}
	c.JSON(http.StatusOK, u)
}

// ListBusinesses returns the listings visible to the caller: everything
// for admins, approved listings plus their own for everyone else.
func (h *Handler) ListBusinesses(c *gin.Context) {
	u := h.app.CurrentUser()
	all := h.app.Businesses()

	if u != nil && u.Role == domain.RoleAdmin {
		c.JSON(http.StatusOK, all)
		return
	}

	visible := make([]domain.Business, 0, len(all))
	for _, b := range all {
		if b.Status == domain.StatusApproved || (u != nil && b.OwnerID == u.ID) {
			visible = append(visible, b)
		}
	}
	c.JSON(http.StatusOK, visible)
}

func (h *Handler) CreateBusiness(c *gin.Context) {
	var req businessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.app.CreateBusiness(c.Request.Context(), domain.Business{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		WhatsApp:    req.WhatsApp,
		Location:    req.Location,
		Website:     req.Website,
		Instagram:   req.Instagram,
		Facebook:    req.Facebook,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateBusiness(c *gin.Context) {
	var req businessPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.app.UpdateBusiness(c.Request.Context(), c.Param("id"), patch); err != nil {
		respondError(c, err)
		return
	}

	if b, ok := h.app.Business(c.Param("id")); ok {
		c.JSON(http.StatusOK, b)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) DeleteBusiness(c *gin.Context) {
	if err := h.app.DeleteBusiness(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Like flips the like for signed-in users and counts a throttled
// anonymous like for guests identified by the X-Guest-ID header.
func (h *Handler) Like(c *gin.Context) {
	id := c.Param("id")

	if h.app.CurrentUser() != nil {
		liked, err := h.app.ToggleLike(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		b, _ := h.app.Business(id)
		c.JSON(http.StatusOK, gin.H{"liked": liked, "likes": b.Likes})
		return
	}

	guestID := c.GetHeader("X-Guest-ID")
	if guestID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Se requiere el encabezado X-Guest-ID para dar like como invitado."})
		return
	}
	if err := h.app.GuestLike(c.Request.Context(), guestID, id); err != nil {
		respondError(c, err)
		return
	}
	b, _ := h.app.Business(id)
	c.JSON(http.StatusOK, gin.H{"liked": true, "likes": b.Likes})
}

func (h *Handler) GetLanding(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.LandingContent())
}

func (h *Handler) UpdateLanding(c *gin.Context) {
	var patch domain.LandingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	merged, err := h.app.UpdateLandingContent(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}

func (h *Handler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "se requiere el archivo 'image'"})
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "la imagen supera el tamaño máximo de 5MB"})
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	url, err := h.app.UploadBusinessImage(c.Request.Context(), header.Filename, content, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (r businessPatchRequest) toPatch() (gateway.BusinessPatch, error) {
	patch := gateway.BusinessPatch{
		Name:          r.Name,
		Category:      r.Category,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		WhatsApp:      r.WhatsApp,
		Location:      r.Location,
		Website:       r.Website,
		Instagram:     r.Instagram,
		Facebook:      r.Facebook,
		PlanExpiresAt: r.PlanExpiresAt,
		AdminNote:     r.AdminNote,
	}
	if r.Status != nil {
		s := domain.BusinessStatus(*r.Status)
		switch s {
		case domain.StatusPending, domain.StatusApproved, domain.StatusRejected, domain.StatusPaused:
			patch.Status = &s
		default:
			return gateway.BusinessPatch{}, errors.New("estado de negocio inválido: " + *r.Status)
		}
	}
	if r.Plan != nil {
		p := domain.PlanType(*r.Plan)
		switch p {
		case domain.PlanFree, domain.PlanInicial, domain.PlanPro, domain.PlanPremium:
			patch.Plan = &p
		default:
			return gateway.BusinessPatch{}, errors.New("plan inválido: " + *r.Plan)
		}
	}
	return patch, nil
}

// respondError maps core errors onto HTTP statuses and user-facing
// messages.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No hay una sesión activa."})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para realizar esta acción."})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "El recurso solicitado no existe."})
	case errors.Is(err, domain.ErrOwnBusinessLike):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No puedes dar like a tu propio negocio."})
	case errors.Is(err, domain.ErrLikeThrottled):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Ya diste like a este negocio en las últimas 24 horas."})
	case timeout.IsTimeout(err):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "La operación tardó demasiado. Intenta nuevamente."})
	default:
		var ge *gateway.Error
		if errors.As(err, &ge) {
			c.JSON(gatewayStatus(ge), gin.H{"error": ge.UserMessage()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ocurrió un error inesperado. Por favor intenta nuevamente."})
	}
}

func gatewayStatus(ge *gateway.Error) int {
	switch ge.Kind {
	case gateway.KindDuplicateRegistration:
		return http.StatusConflict
	case gateway.KindInvalidCredentials:
		return http.StatusUnauthorized
	case gateway.KindEmailUnconfirmed:
		return http.StatusForbidden
	case gateway.KindUnreachable:
		return http.StatusBadGateway
	default:
		if ge.Status >= 400 {
			return ge.Status
		}
		return http.StatusInternalServerError
	}
}
