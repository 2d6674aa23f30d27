package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"virtualcard_back/models"
)

func (h *Handler) AdminUsers(c *gin.Context) {
	users, err := h.service.Admin.ListUsers(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"users": users})
}

func (h *Handler) AdminCards(c *gin.Context) {
	cards, err := h.service.Admin.ListAllCards(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"cards": cards})
}

func (h *Handler) AdminTopups(c *gin.Context) {
	topups, err := h.service.Admin.ListAllTopups(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"topups": topups})
}

func (h *Handler) AdminTransactions(c *gin.Context) {
	txs, err := h.service.Admin.ListAllTransactions(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"transactions": txs})
}

func (h *Handler) AdminCreateCard(c *gin.Context) {
	var input models.CreateCardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	card, err := h.service.Admin.CreateCardForUser(c.Request.Context(), input)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"card": card})
}

// ?local=true удаляет только локальную запись
func (h *Handler) AdminDeleteCard(c *gin.Context) {
	localOnly, _ := strconv.ParseBool(c.Query("local"))
	if err := h.service.Admin.DeleteCard(c.Request.Context(), c.Param("id"), localOnly); err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"message": "Card deleted"})
}

func (h *Handler) AdminSetTopupStatus(c *gin.Context) {
	var input models.TopupStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	topup, err := h.service.Admin.SetTopupStatus(c.Request.Context(), input)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"topup": topup})
}

func (h *Handler) AdminDeleteTopup(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid topup id")
		return
	}
	if err := h.service.Admin.DeleteTopup(c.Request.Context(), id); err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"message": "Topup deleted"})
}

func (h *Handler) AdminSyncBalances(c *gin.Context) {
	n, err := h.service.Admin.SyncBalances(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"updated": n})
}

func (h *Handler) AdminImportTransactions(c *gin.Context) {
	n, err := h.service.Admin.ImportTransactions(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{"imported": n})
}
