package api

import (
	"net/http"

	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handler) ListActivities(c *gin.Context) {
	list, err := h.Activities.List(c.Request.Context(), c.Param("docId"), services.Page{
		Page:  cast.ToInt(c.Query("page")),
		Limit: cast.ToInt(c.Query("limit")),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"erro":           false,
		"quantidade":     len(list.Activities),
		"pagina":         list.Page,
		"totalPaginas":   list.TotalPages,
		"totalRegistros": list.Total,
		"atividades":     list.Activities,
	})
}
