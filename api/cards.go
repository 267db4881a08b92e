package api

import (
	"net/http"

	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// cardFail writes the {success, message, error} envelope of the cards API.
func cardFail(c *gin.Context, err error) {
	logBackend(c, err)
	var detail any
	if apperr.KindOf(err) != apperr.KindBackend {
		detail = apperr.KindOf(err).String()
	}
	c.JSON(apperr.KindOf(err).Status(), gin.H{
		"success": false,
		"message": apperr.Message(err),
		"error":   detail,
	})
}

func (h *Handler) CreateCard(c *gin.Context) {
	var in services.CreateCardInput
	if err := bindJSON(c, &in); err != nil {
		cardFail(c, err)
		return
	}
	card, err := h.Cards.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		cardFail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": card})
}

func (h *Handler) ListCards(c *gin.Context) {
	list, err := h.Cards.List(c.Request.Context(), services.CardQuery{
		ContractID: c.Query("contractId"),
		Lane:       c.Query("lane"),
		Page: services.Page{
			Page:  cast.ToInt(c.Query("page")),
			Limit: cast.ToInt(c.Query("limit")),
		},
	})
	if err != nil {
		cardFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list.Cards,
		"pagination": gin.H{
			"totalPages":  list.TotalPages,
			"currentPage": list.Page,
			"totalCards":  list.Total,
		},
	})
}

func (h *Handler) GetCard(c *gin.Context) {
	card, err := h.Cards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		cardFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": card})
}

func (h *Handler) UpdateCard(c *gin.Context) {
	var patch services.CardPatch
	if err := bindJSON(c, &patch); err != nil {
		cardFail(c, err)
		return
	}
	card, err := h.Cards.Update(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		cardFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": card})
}

func (h *Handler) DeleteCard(c *gin.Context) {
	if err := h.Cards.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		cardFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Card deletado com sucesso."})
}
