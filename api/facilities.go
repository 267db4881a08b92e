package api

import (
	"net/http"

	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateFacility(c *gin.Context) {
	var in services.FacilityInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	facility, err := h.Facilities.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, facility)
}

func (h *Handler) ListFacilities(c *gin.Context) {
	facilities, err := h.Facilities.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, facilities)
}

func (h *Handler) GetFacility(c *gin.Context) {
	facility, err := h.Facilities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, facility)
}

func (h *Handler) UpdateFacility(c *gin.Context) {
	var patch services.FacilityPatch
	if err := bindJSON(c, &patch); err != nil {
		fail(c, err)
		return
	}
	facility, err := h.Facilities.Update(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, facility)
}

func (h *Handler) DeleteFacility(c *gin.Context) {
	if err := h.Facilities.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mensagem": "Facility deletada com sucesso!"})
}
