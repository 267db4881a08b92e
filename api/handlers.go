package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

type Handler struct {
	DB         *gorm.DB
	Cards      *services.CardService
	Uploads    *services.UploadService
	Contracts  *services.ContractService
	Facilities *services.FacilityService
	Users      *services.UserService
	Activities *services.ActivityService
	Cookie     CookieConfig
	// MaxUpload caps the multipart body. Zero means no cap.
	MaxUpload int64
	// FilesDir, when set, is served under /files.
	FilesDir string
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(RequestID(), h.Session())
	if h.FilesDir != "" {
		r.Static("/files", h.FilesDir)
	}

	api := r.Group("/api")
	api.GET("/health", h.HealthCheckHandler)

	cards := api.Group("/cards")
	{
		cards.POST("", h.CreateCard)
		cards.GET("", h.ListCards)
		cards.GET("/:id", h.GetCard)
		cards.PUT("/:id", h.UpdateCard)
		cards.DELETE("/:id", h.DeleteCard)
	}

	contracts := api.Group("/contracts")
	{
		contracts.GET("", h.ListContracts)
		contracts.POST("", h.CreateContract)
		contracts.GET("/:id", h.GetContract)
		contracts.PUT("/:id", h.UpdateContract)
		contracts.GET("/:id/revisions", h.ListContractRevisions)
		contracts.GET("/:id/items", h.ListContractItems)
		contracts.POST("/:id/items/:itemId/measurement", h.MeasureItem)
	}

	uploads := api.Group("/uploads")
	{
		uploads.POST("", h.CreateUpload)
		uploads.GET("/trash/:id/:cardId", h.ListTrash)
		uploads.DELETE("/trash/:id", h.PurgeUpload)
		// :id is the contract id when followed by a card id
		uploads.GET("/:id/:cardId", h.ListUploads)
		uploads.GET("/:id", h.GetUpload)
		uploads.PUT("/:id", h.UpdateUpload)
		uploads.DELETE("/:id", h.DeleteUpload)
	}

	facilities := api.Group("/facilities")
	{
		facilities.POST("", h.CreateFacility)
		facilities.GET("", h.ListFacilities)
		facilities.GET("/:id", h.GetFacility)
		facilities.PUT("/:id", h.UpdateFacility)
		facilities.DELETE("/:id", h.DeleteFacility)
	}

	users := api.Group("/users")
	{
		users.POST("/registration/newUser", h.RegisterUser)
		users.POST("/login", h.Login)
		users.GET("/logout", h.Logout)
		users.GET("/auth", h.CheckAuth)
		users.GET("/is-auth", h.IsAuth)
		users.POST("/update-password", h.UpdatePassword)
		users.GET("", h.ListUsers)
	}

	api.GET("/activities/:docId", h.ListActivities)
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := h.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			zap.L().Error("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func logBackend(c *gin.Context, err error) {
	if apperr.KindOf(err) != apperr.KindBackend {
		return
	}
	zap.L().Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("requestID", GetRequestID(c)),
		zap.Error(err),
	)
}

// fail writes the {erro, mensagem} envelope used by every resource except cards.
func fail(c *gin.Context, err error) {
	logBackend(c, err)
	c.JSON(apperr.KindOf(err).Status(), gin.H{"erro": true, "mensagem": apperr.Message(err)})
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("JSON inválido: %v", err)
	}
	return nil
}

func actor(c *gin.Context) services.Actor {
	if a, ok := c.Get(actorKey); ok {
		return a.(services.Actor)
	}
	return services.Actor{IP: c.ClientIP()}
}
