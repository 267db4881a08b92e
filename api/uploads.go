package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
)

// multipartSlack leaves room for the form fields around the file part.
const multipartSlack = 1 << 20

func (h *Handler) readFile(c *gin.Context) (services.FileInput, error) {
	if h.MaxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload+multipartSlack)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.FileInput{}, apperr.TooLarge("Arquivo excede o tamanho máximo de %d bytes.", h.MaxUpload)
		}
		// missing file: the service reports it after checking the ids
		return services.FileInput{}, nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return services.FileInput{}, apperr.Validation("Falha ao ler o arquivo enviado.")
	}
	return services.FileInput{Name: header.Filename, Data: data}, nil
}

func (h *Handler) CreateUpload(c *gin.Context) {
	f, err := h.readFile(c)
	if err != nil {
		fail(c, err)
		return
	}
	up, err := h.Uploads.Create(c.Request.Context(), actor(c), f, services.UploadMeta{
		ContractID:  c.PostForm("contractId"),
		CardID:      c.PostForm("cardId"),
		ItemID:      c.PostForm("itemId"),
		Description: c.PostForm("description"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (h *Handler) ListUploads(c *gin.Context) {
	uploads, err := h.Uploads.List(c.Request.Context(), actor(c), c.Param("id"), c.Param("cardId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, uploads)
}

func (h *Handler) ListTrash(c *gin.Context) {
	trash, err := h.Uploads.ListTrash(c.Request.Context(), actor(c), c.Param("id"), c.Param("cardId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trash)
}

func (h *Handler) GetUpload(c *gin.Context) {
	up, err := h.Uploads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (h *Handler) UpdateUpload(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	if err := bindJSON(c, &body); err != nil {
		fail(c, err)
		return
	}
	up, err := h.Uploads.UpdateDescription(c.Request.Context(), actor(c), c.Param("id"), body.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (h *Handler) DeleteUpload(c *gin.Context) {
	trash, err := h.Uploads.SoftDelete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mensagem": "Arquivo movido para a lixeira com sucesso.", "trashRecord": trash})
}

func (h *Handler) PurgeUpload(c *gin.Context) {
	if err := h.Uploads.Purge(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mensagem": "Arquivo deletado permanentemente da lixeira."})
}
