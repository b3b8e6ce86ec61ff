package handler

import (
	"strconv"

	"botfleet/backend/internal/middleware"
	"botfleet/backend/internal/model"
	"botfleet/backend/internal/service"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

type CredentialHandler struct {
	credService *service.CredentialService
}

func NewCredentialHandler(credService *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{
		credService: credService,
	}
}

// SubmitCredential handles POST /api/v1/credentials
// Clients submit for themselves; operators may submit on a client's behalf by
// setting client_id in the request.
func (h *CredentialHandler) SubmitCredential(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return
	}

	var req model.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	clientID := actor.ActorID
	source := model.CredentialSourceClient
	if actor.Role == jwt.RoleOperator {
		source = model.CredentialSourceOperator
		if req.ClientID != "" {
			clientID = req.ClientID
		}
	}

	cred, err := h.credService.Submit(c.Request.Context(), clientID, source, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, cred, "Credential stored")
}

// ListCredentials handles GET /api/v1/credentials
func (h *CredentialHandler) ListCredentials(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return
	}

	clientID := actor.ActorID
	if actor.Role == jwt.RoleOperator {
		if q := c.Query("client_id"); q != "" {
			clientID = q
		}
	}

	creds, err := h.credService.List(c.Request.Context(), clientID)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, creds)
}

// DeleteCredential handles DELETE /api/v1/credentials/:id
func (h *CredentialHandler) DeleteCredential(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		util.SendError(c, util.ErrBadRequest("Invalid credential ID"))
		return
	}

	if err := h.credService.Delete(c.Request.Context(), actor.ActorID, id); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, gin.H{"deleted": true})
}

// RotateKey handles POST /api/v1/admin/rotate-key (operator only, enforced by
// route middleware). Re-encrypts every stored credential under the new key.
func (h *CredentialHandler) RotateKey(c *gin.Context) {
	var req struct {
		NewKey string `json:"new_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	rotated, failed, err := h.credService.RotateKey(c.Request.Context(), req.NewKey)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, gin.H{
		"rotated": rotated,
		"failed":  failed,
	})
}
