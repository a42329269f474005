package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/charlesng35/invitegate/internal/middleware"
	"github.com/charlesng35/invitegate/internal/models"
	"github.com/charlesng35/invitegate/internal/services"
	"github.com/charlesng35/invitegate/pkg/crypto"
	appErrors "github.com/charlesng35/invitegate/pkg/errors"
	"github.com/charlesng35/invitegate/pkg/response"
	appValidator "github.com/charlesng35/invitegate/pkg/validator"
)

type InviteHandler struct {
	invites *services.InviteService
	now     func() time.Time
}

func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites, now: time.Now}
}

type createInviteRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

type redeemInviteRequest struct {
	Code string `json:"code" validate:"required,invitecode"`
}

type updateExpiryRequest struct {
	ExpiresAt *time.Time `json:"expires_at" validate:"required"`
}

type sendSMSRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type inviteDTO struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	CreatedBy string     `json:"created_by"`
	UsedBy    *string    `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	Status    string     `json:"status"`
}

type sendSMSResponse struct {
	InviteID   string `json:"invite_id"`
	Sent       bool   `json:"sent"`
	MessageID  string `json:"message_id,omitempty"`
	Attempts   int    `json:"attempts"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// POST /api/invite-codes
func (h *InviteHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createInviteRequest
	if hasBody(c) && !bindAndValidate(c, &req) {
		return
	}

	invite, err := h.invites.Create(requestContext(c), userID, req.ExpiresAt)
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.Success(c, http.StatusCreated, h.toDTO(invite))
}

// GET /api/invite-codes/mine
func (h *InviteHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	invites, err := h.invites.ListByCreator(requestContext(c), userID)
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.Success(c, http.StatusOK, h.toDTOs(invites))
}

// POST /api/invite-codes/use
func (h *InviteHandler) Redeem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req redeemInviteRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}
	if err := appValidator.ValidateStruct(&req); err != nil {
		response.Error(c, appErrors.ErrInviteInvalid)
		return
	}

	invite, err := h.invites.Redeem(requestContext(c), req.Code, userID)
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.Success(c, http.StatusOK, h.toDTO(invite))
}

// POST /api/invite-codes/:id/send-sms
func (h *InviteHandler) SendSMS(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req sendSMSRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	if !h.invites.SMSConfigured() {
		response.Error(c, appErrors.ErrSMSUnconfigured)
		return
	}

	invite, err := h.invites.GetByID(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}
	if invite.CreatedBy != userID && !isAdmin(c) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	result, err := h.invites.Notify(ctx, invite.ID, req.PhoneNumber)
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	payload := sendSMSResponse{
		InviteID:  result.InviteID,
		Sent:      result.Delivery.Success,
		MessageID: result.Delivery.MessageID,
		Attempts:  result.Delivery.Attempts,
	}
	if result.Record != nil {
		payload.DeliveryID = result.Record.ID
	}
	response.Success(c, http.StatusOK, payload)
}

// GET /api/invite-codes
func (h *InviteHandler) List(c *gin.Context) {
	page, err := h.invites.ListAll(requestContext(c), parseIntQuery(c, "page", 1), parseIntQuery(c, "limit", 0))
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, h.toDTOs(page.Items), response.NewMeta(page.Page, page.Limit, page.Total))
}

// GET /api/invite-codes/:id
func (h *InviteHandler) Get(c *gin.Context) {
	invite, err := h.invites.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.Success(c, http.StatusOK, h.toDTO(invite))
}

// GET /api/invite-codes/lookup/:code
func (h *InviteHandler) GetByCode(c *gin.Context) {
	invite, err := h.invites.GetByCode(requestContext(c), c.Param("code"))
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.Success(c, http.StatusOK, h.toDTO(invite))
}

// PATCH /api/invite-codes/:id
func (h *InviteHandler) UpdateExpiry(c *gin.Context) {
	var req updateExpiryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invite, err := h.invites.UpdateExpiry(requestContext(c), c.Param("id"), *req.ExpiresAt)
	if err != nil {
		response.Error(c, inviteError(err))
		return
	}

	response.Success(c, http.StatusOK, h.toDTO(invite))
}

// DELETE /api/invite-codes/:id
func (h *InviteHandler) Delete(c *gin.Context) {
	if err := h.invites.Remove(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, inviteError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

// SMSDestinationKey buckets send-sms requests by a digest of the destination
// number. Requests without a readable number are not limited here; the handler
// rejects them.
func SMSDestinationKey(c *gin.Context) (string, bool) {
	var req sendSMSRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		return "", false
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return "", false
	}
	return crypto.DigestPhone(phone), true
}

func (h *InviteHandler) toDTO(invite *models.InviteCode) inviteDTO {
	return inviteDTO{
		ID:        invite.ID,
		Code:      invite.Code,
		CreatedBy: invite.CreatedBy,
		UsedBy:    invite.UsedBy,
		UsedAt:    invite.UsedAt,
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
		Status:    string(invite.State(h.now())),
	}
}

func (h *InviteHandler) toDTOs(invites []models.InviteCode) []inviteDTO {
	out := make([]inviteDTO, 0, len(invites))
	for i := range invites {
		out = append(out, h.toDTO(&invites[i]))
	}
	return out
}

func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func isAdmin(c *gin.Context) bool {
	claims, ok := middleware.ClaimsFromContext(c)
	return ok && claims.IsAdmin()
}

func hasBody(c *gin.Context) bool {
	return c.Request != nil && c.Request.Body != nil && c.Request.ContentLength != 0
}
