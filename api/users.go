package api

import (
	"net/http"

	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
)

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Cookie.Name, token, maxAge, "/", "", h.Cookie.Secure, true)
}

func currentUser(c *gin.Context) *models.User {
	if u, ok := c.Get(userKey); ok {
		return u.(*models.User)
	}
	return nil
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var in services.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	user, err := h.Users.Register(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"erro": false, "mensagem": "Usuário registrado com sucesso!", "user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := bindJSON(c, &body); err != nil {
		fail(c, err)
		return
	}
	if body.Username == "" || body.Password == "" {
		fail(c, apperr.Auth("Usuário ou senha inválidos."))
		return
	}
	user, token, err := h.Users.Login(c.Request.Context(), actor(c), body.Username, body.Password)
	if err != nil {
		fail(c, err)
		return
	}
	h.setSessionCookie(c, token, int(h.Cookie.MaxAge.Seconds()))
	c.JSON(http.StatusOK, gin.H{"erro": false, "mensagem": "Usuário logado com sucesso!", "user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.Cookie.Name)
	if err := h.Users.Logout(c.Request.Context(), actor(c), token); err != nil {
		fail(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"erro": false, "mensagem": "Usuário deslogado com sucesso!"})
}

func (h *Handler) CheckAuth(c *gin.Context) {
	if user := currentUser(c); user != nil {
		c.JSON(http.StatusOK, gin.H{"status": true, "user": user})
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{"status": false, "user": nil})
}

func (h *Handler) IsAuth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": currentUser(c) != nil})
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	var in services.PasswordChange
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	if err := h.Users.ChangePassword(c.Request.Context(), actor(c), in); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"erro": false, "mensagem": "Senha atualizada com sucesso!"})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
