package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerlab/packsmith-backend/internal/platform/apierr"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
	"github.com/stickerlab/packsmith-backend/internal/requestdata"
	"github.com/stickerlab/packsmith-backend/internal/services"
)

type PackHandler struct {
	log            *logger.Logger
	publishService services.PublishService
}

func NewPackHandler(baseLog *logger.Logger, publishService services.PublishService) *PackHandler {
	return &PackHandler{
		log:            baseLog.With("handler", "PackHandler"),
		publishService: publishService,
	}
}

type createPackRequest struct {
	Title string `json:"title"`
}

func (h *PackHandler) CreatePack(c *gin.Context) {
	var req createPackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("malformed request body"))
		return
	}
	pack, err := h.publishService.CreatePack(c.Request.Context(), requestdata.UserID(c.Request.Context()), req.Title)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"pack_key": pack.PackKey,
		"title":    pack.Title,
		"status":   pack.Status,
	})
}

type ingestUploadRequest struct {
	UploadID     string `json:"upload_id"`
	Content      string `json:"content"`
	MimeType     string `json:"mime_type"`
	DeclaredHash string `json:"declared_hash"`
	SetCover     bool   `json:"set_cover"`
	Emoji        string `json:"emoji"`
}

func (h *PackHandler) IngestUpload(c *gin.Context) {
	var req ingestUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("malformed request body"))
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("content is not valid base64"))
		return
	}
	result, err := h.publishService.IngestUpload(
		c.Request.Context(),
		requestdata.UserID(c.Request.Context()),
		c.Param("key"),
		services.IngestUploadInput{
			UploadID:     req.UploadID,
			Content:      content,
			MimeType:     req.MimeType,
			DeclaredHash: req.DeclaredHash,
			SetCover:     req.SetCover,
			Emoji:        req.Emoji,
		},
	)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *PackHandler) Finalize(c *gin.Context) {
	result, err := h.publishService.Finalize(c.Request.Context(), requestdata.UserID(c.Request.Context()), c.Param("key"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *PackHandler) PublishState(c *gin.Context) {
	view, err := h.publishService.PublishState(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, view)
}
