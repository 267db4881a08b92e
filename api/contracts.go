package api

import (
	"net/http"

	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListContracts(c *gin.Context) {
	contracts, err := h.Contracts.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contracts)
}

func (h *Handler) CreateContract(c *gin.Context) {
	var in services.ContractInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	contract, err := h.Contracts.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) GetContract(c *gin.Context) {
	contract, err := h.Contracts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) UpdateContract(c *gin.Context) {
	var patch services.ContractPatch
	if err := bindJSON(c, &patch); err != nil {
		fail(c, err)
		return
	}
	contract, err := h.Contracts.Update(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) ListContractRevisions(c *gin.Context) {
	revisions, err := h.Contracts.Revisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, revisions)
}

func (h *Handler) ListContractItems(c *gin.Context) {
	items, err := h.Contracts.Items(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) MeasureItem(c *gin.Context) {
	var body struct {
		Quantity *decimal.Decimal `json:"quantity"`
	}
	if err := bindJSON(c, &body); err != nil {
		fail(c, err)
		return
	}
	if body.Quantity == nil {
		fail(c, apperr.Validation("Campo obrigatório faltando: quantity."))
		return
	}
	item, err := h.Contracts.Measure(c.Request.Context(), actor(c), c.Param("id"), c.Param("itemId"), *body.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
