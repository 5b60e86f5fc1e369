package handler

import (
	"errors"
	"net/http"

	"tokenizermanager/internal/crypto"
	"tokenizermanager/internal/model"
	"tokenizermanager/internal/service"

	"github.com/gin-gonic/gin"
)

type ChannelHandler struct {
	channelService *service.ChannelService
}

func NewChannelHandler(channelService *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{
		channelService: channelService,
	}
}

func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.channelService.List()
	if err != nil {
		fail(c, http.StatusInternalServerError, "获取渠道列表失败")
		return
	}

	ok(c, http.StatusOK, channels)
}

func (h *ChannelHandler) Get(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}

	channel, err := h.channelService.GetByID(id)
	if err != nil {
		h.writeError(c, err, "获取渠道失败")
		return
	}

	ok(c, http.StatusOK, channel)
}

func (h *ChannelHandler) Create(c *gin.Context) {
	var req model.ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	channel, err := h.channelService.Create(&req)
	if err != nil {
		h.writeError(c, err, "创建渠道失败")
		return
	}

	ok(c, http.StatusCreated, channel)
}

func (h *ChannelHandler) Update(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}

	var req model.ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	channel, err := h.channelService.Update(id, &req)
	if err != nil {
		h.writeError(c, err, "更新渠道失败")
		return
	}

	ok(c, http.StatusOK, channel)
}

func (h *ChannelHandler) Delete(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}

	if err := h.channelService.Delete(id); err != nil {
		h.writeError(c, err, "删除渠道失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "渠道已删除"})
}

func (h *ChannelHandler) SetEnabled(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误")
		return
	}

	if err := h.channelService.SetEnabled(id, req.Enabled); err != nil {
		h.writeError(c, err, "更新渠道状态失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "渠道状态已更新"})
}

func (h *ChannelHandler) TestConnection(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}

	result, err := h.channelService.TestConnection(id)
	if err != nil {
		h.writeError(c, err, "测试连接失败")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ChannelHandler) writeError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, service.ErrChannelNotFound) {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, crypto.ErrEncryptionKeyNotSet) {
		fail(c, http.StatusBadRequest, "未配置 ENCRYPTION_KEY，无法保存 API Key")
		return
	}
	fail(c, http.StatusInternalServerError, fallback)
}
