package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pixelrelay/relay/internal/message"
	"github.com/pixelrelay/relay/internal/relay"
)

const (
	imageDownloadName = "image.rgb565"

	messageUploadOK      = "Message uploaded successfully"
	messageUploadMissing = "Missing text or image data"
	messageUploadFailed  = "Failed to upload message"
	messageNoNewMessage  = "No new message available"
	messageNoImageData   = "No image data available"
)

var errMissingRelayService = errors.New("relay service dependency required")

// Dependencies lists the collaborators the HTTP surface composes.
type Dependencies struct {
	RelayService *relay.Service
	Database     *gorm.DB
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router exposing the relay endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.RelayService == nil {
		return nil, errMissingRelayService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		relayService: deps.RelayService,
		db:           deps.Database,
		logger:       logger,
	}

	router.POST("/upload", handler.handleUpload)
	router.GET("/get_new_message", handler.handleGetNewMessage)
	router.GET("/get_latest_message_index", handler.handleGetLatestMessageIndex)
	router.GET("/get_index_message/:index", handler.handleGetIndexMessage)
	router.GET("/get_image_data", handler.handleGetImageData)
	router.GET("/get_message_read_status", handler.handleGetMessageReadStatus)
	router.GET("/set_message_read", handler.handleSetMessageRead)
	router.GET("/test", handler.handleTest)
	router.GET("/healthz", handler.handleHealthz)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	relayService *relay.Service
	db           *gorm.DB
	logger       *zap.Logger
}

type uploadRequestPayload struct {
	TextData  string `json:"text_data"`
	ImageData string `json:"image_data"`
}

func (h *httpHandler) handleUpload(c *gin.Context) {
	var request uploadRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": messageUploadMissing})
		return
	}

	err := h.relayService.Upload(c.Request.Context(), request.TextData, request.ImageData)
	if errors.Is(err, relay.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": messageUploadMissing})
		return
	}
	if err != nil {
		h.logger.Error("upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": messageUploadFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": messageUploadOK})
}

func (h *httpHandler) handleGetNewMessage(c *gin.Context) {
	summary, pending, err := h.relayService.PollNew(c.Request.Context())
	if err != nil {
		h.logger.Error("poll for new message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": false})
		return
	}
	if !pending {
		c.JSON(http.StatusOK, gin.H{"status": false, "message": messageNoNewMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"data": gin.H{
			"text":  summary.Text,
			"image": summary.HasImage,
		},
	})
}

func (h *httpHandler) handleGetLatestMessageIndex(c *gin.Context) {
	latest, err := h.relayService.LatestIndex(c.Request.Context())
	if errors.Is(err, message.ErrEmpty) {
		c.JSON(http.StatusOK, gin.H{"status": false, "data": gin.H{"index": -1}})
		return
	}
	if err != nil {
		h.logger.Error("latest message index lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "data": gin.H{"index": latest}})
}

func (h *httpHandler) handleGetIndexMessage(c *gin.Context) {
	index, err := strconv.ParseInt(c.Param("index"), 10, 64)
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false})
		return
	}

	summary, err := h.relayService.FetchByIndex(c.Request.Context(), index)
	if errors.Is(err, message.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"status": false})
		return
	}
	if err != nil {
		h.logger.Error("indexed message lookup failed", zap.Int64("index", index), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"data": gin.H{
			"text":  summary.Text,
			"index": summary.Index,
			"image": summary.HasImage,
		},
	})
}

func (h *httpHandler) handleGetImageData(c *gin.Context) {
	payload, err := h.relayService.FetchCurrentImage(c.Request.Context())
	if errors.Is(err, relay.ErrNoImageAvailable) {
		c.JSON(http.StatusNotFound, gin.H{"error": messageNoImageData})
		return
	}
	if err != nil {
		h.logger.Error("image fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": messageNoImageData})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+imageDownloadName+`"`)
	c.Data(http.StatusOK, "application/octet-stream", payload)
}

func (h *httpHandler) handleGetMessageReadStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.relayService.ReadStatus()})
}

func (h *httpHandler) handleSetMessageRead(c *gin.Context) {
	h.relayService.MarkRead()
	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *httpHandler) handleTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "This is a test endpoint"})
}

func (h *httpHandler) handleHealthz(c *gin.Context) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			h.logger.Error("health check database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
