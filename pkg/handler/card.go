package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"virtualcard_back/pkg/middleware"
)

type requestCardInput struct {
	Purpose string `json:"purpose"`
}

func (h *Handler) GetCards(c *gin.Context) {
	who, _ := middleware.GetIdentity(c)
	cards, err := h.service.Cards.ListCards(c.Request.Context(), who.ID)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"cards": cards,
	})
}

// тело необязательно
func (h *Handler) RequestCard(c *gin.Context) {
	var input requestCardInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			newErrorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	who, _ := middleware.GetIdentity(c)
	card, err := h.service.Cards.RequestCard(c.Request.Context(), who.ID, input.Purpose)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"card": card,
	})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	who, _ := middleware.GetIdentity(c)
	txs, err := h.service.Transactions.ListTransactions(c.Request.Context(), who.ID)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"transactions": txs,
	})
}
