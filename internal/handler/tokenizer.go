package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tokenizermanager/internal/model"
	"tokenizermanager/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TokenizerHandler struct {
	tokenizerService *service.TokenizerService
}

func NewTokenizerHandler(tokenizerService *service.TokenizerService) *TokenizerHandler {
	return &TokenizerHandler{
		tokenizerService: tokenizerService,
	}
}

// List 获取分词器列表
func (h *TokenizerHandler) List(c *gin.Context) {
	tokenizers, err := h.tokenizerService.List(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("获取分词器列表失败")
		fail(c, http.StatusInternalServerError, "获取渠道列表失败: "+err.Error())
		return
	}

	ok(c, http.StatusOK, tokenizers)
}

// Verify 验证渠道下的分词器
func (h *TokenizerHandler) Verify(c *gin.Context) {
	channelIDStr := c.Query("channel_id")
	if channelIDStr == "" {
		fail(c, http.StatusBadRequest, "缺少channel_id参数")
		return
	}

	channelID, err := strconv.Atoi(channelIDStr)
	if err != nil {
		fail(c, http.StatusBadRequest, "channel_id参数无效")
		return
	}

	results, err := h.tokenizerService.Verify(c.Request.Context(), channelID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	ok(c, http.StatusOK, results)
}

// Update 更新指定渠道的分词器
func (h *TokenizerHandler) Update(c *gin.Context) {
	var req model.TokenizerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	resp, err := h.tokenizerService.Update(c.Request.Context(), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TokenizerHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrChannelNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnsupportedChannel):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).Error("分词器操作失败")
		fail(c, http.StatusInternalServerError, "分词器操作失败: "+err.Error())
	}
}
