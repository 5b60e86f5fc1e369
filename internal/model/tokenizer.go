package model

import "time"

type TokenizerStatus string

const (
	TokenizerStatusAvailable TokenizerStatus = "available"
	TokenizerStatusUpdating  TokenizerStatus = "updating"
	TokenizerStatusError     TokenizerStatus = "error"
)

// Normalize 将未知状态归为 error
func (s TokenizerStatus) Normalize() TokenizerStatus {
	switch s {
	case TokenizerStatusAvailable, TokenizerStatusUpdating, TokenizerStatusError:
		return s
	default:
		return TokenizerStatusError
	}
}

// SizeUnknown 缓存大小未知时展示的文本
const SizeUnknown = "未知"

type TokenizerInfo struct {
	ModelName     string          `json:"model_name"`
	Status        TokenizerStatus `json:"status"`
	LastUpdated   time.Time       `json:"last_updated"`
	Size          string          `json:"size"`
	CacheLocation string          `json:"cache_location,omitempty"`
	ChannelID     int             `json:"channel_id"`
	ChannelName   string          `json:"channel_name"`
}

type TokenizerUpdateRequest struct {
	ChannelID int      `json:"channel_id"`
	Models    []string `json:"models"`
	Force     bool     `json:"force"`
}

type TokenizerUpdateResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	UpdatedAt time.Time      `json:"updated_at"`
	Results   []UpdateResult `json:"results"`
}

type UpdateResult struct {
	ModelName string `json:"model_name"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
}

// TokenizerState 持久化的分词器缓存状态，SizeBytes 为 -1 表示未知
type TokenizerState struct {
	ChannelID   int
	ModelName   string
	Status      TokenizerStatus
	SizeBytes   int64
	Message     string
	LastUpdated *time.Time
	CheckedAt   time.Time
}
