package model

import (
	"encoding/json"
	"strings"
	"time"
)

type ChannelType string

const (
	ChannelTypeHuggingFace ChannelType = "huggingface"
	ChannelTypeOpenAI      ChannelType = "openai"
	ChannelTypeClaude      ChannelType = "claude"
)

type Channel struct {
	ID         int         `json:"id"`
	Type       ChannelType `json:"type"`
	Name       string      `json:"name"`
	BaseURL    string      `json:"base_url"`
	Container  string      `json:"container"`
	APIKeyEnc  string      `json:"-"`
	Enabled    bool        `json:"enabled"`
	ModelsJSON string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ModelNames 返回渠道配置的模型列表，去除空白项
func (c *Channel) ModelNames() []string {
	var raw []string
	if err := json.Unmarshal([]byte(c.ModelsJSON), &raw); err != nil {
		return nil
	}
	models := make([]string, 0, len(raw))
	for _, m := range raw {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		models = append(models, m)
	}
	return models
}

type ChannelRequest struct {
	Type      ChannelType `json:"type" binding:"required,oneof=huggingface openai claude"`
	Name      string      `json:"name" binding:"required,min=1,max=64"`
	BaseURL   string      `json:"base_url" binding:"required,url"`
	Container string      `json:"container,omitempty" binding:"max=128"`
	APIKey    string      `json:"api_key,omitempty"`
	Enabled   bool        `json:"enabled"`
	Models    []string    `json:"models,omitempty"`
}

type ChannelResponse struct {
	ID        int         `json:"id"`
	Type      ChannelType `json:"type"`
	Name      string      `json:"name"`
	BaseURL   string      `json:"base_url"`
	Container string      `json:"container"`
	HasAPIKey bool        `json:"has_api_key"`
	Enabled   bool        `json:"enabled"`
	Models    []string    `json:"models"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type TestChannelResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}
