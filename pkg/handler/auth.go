package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"virtualcard_back/models"
	"virtualcard_back/pkg/middleware"
)

func (h *Handler) Register(c *gin.Context) {
	var input models.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.service.Authorization.Register(c.Request.Context(), input)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      id,
		"message": "Registered. Check your email to verify the account.",
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.service.Authorization.Login(c.Request.Context(), input)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"token": token,
	})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		newErrorResponse(c, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.service.Authorization.VerifyEmail(c.Request.Context(), token); err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"message": "Email verified",
	})
}

func (h *Handler) GetMe(c *gin.Context) {
	who, _ := middleware.GetIdentity(c)
	user, err := h.service.Authorization.Me(c.Request.Context(), who.ID)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"user": user,
	})
}
