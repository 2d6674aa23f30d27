package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"virtualcard_back/models"
	"virtualcard_back/pkg/middleware"
)

// Пополнение карты через USDT (TRC20). Тело запроса {amount, cardId, txid}
func (h *Handler) Topup(c *gin.Context) {
	var input models.TopupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	who, _ := middleware.GetIdentity(c)
	res, err := h.service.Topup.Submit(c.Request.Context(), who, input)
	if err != nil {
		serviceError(c, err)
		return
	}

	if res.Status == models.TopupPending {
		c.JSON(http.StatusAccepted, gin.H{
			"message": res.Message,
			"status":  res.Status,
		})
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"message":      res.Message,
		"fundedAmount": res.FundedAmount,
		"providerData": res.ProviderData,
	})
}

func (h *Handler) TopupHistory(c *gin.Context) {
	who, _ := middleware.GetIdentity(c)
	topups, err := h.service.Topup.History(c.Request.Context(), who.ID)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"topups": topups,
	})
}
