package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tokenizermanager/internal/crypto"
	"tokenizermanager/internal/model"
	"tokenizermanager/internal/repository"
)

var (
	ErrChannelNotFound    = errors.New("渠道不存在")
	ErrUnsupportedChannel = errors.New("只支持HuggingFace类型的渠道")
)

type ChannelService struct {
	repo       repository.ChannelRepositoryInterface
	sealer     *crypto.Sealer
	httpClient *http.Client
}

// NewChannelServiceWithRepo sealer 为 nil 时拒绝保存 API Key
func NewChannelServiceWithRepo(repo repository.ChannelRepositoryInterface, sealer *crypto.Sealer) *ChannelService {
	return &ChannelService{
		repo:       repo,
		sealer:     sealer,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func NewChannelService(sealer *crypto.Sealer) *ChannelService {
	return NewChannelServiceWithRepo(repository.NewChannelRepository(), sealer)
}

func encodeModels(models []string) string {
	cleaned := make([]string, 0, len(models))
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m != "" {
			cleaned = append(cleaned, m)
		}
	}
	data, _ := json.Marshal(cleaned)
	return string(data)
}

func (s *ChannelService) Create(req *model.ChannelRequest) (*model.ChannelResponse, error) {
	channel := &model.Channel{
		Type:       req.Type,
		Name:       req.Name,
		BaseURL:    strings.TrimSuffix(req.BaseURL, "/"),
		Container:  strings.TrimSpace(req.Container),
		Enabled:    req.Enabled,
		ModelsJSON: encodeModels(req.Models),
	}

	sealed, err := s.sealer.Seal(strings.TrimSpace(req.APIKey))
	if err != nil {
		return nil, fmt.Errorf("encrypt api key: %w", err)
	}
	channel.APIKeyEnc = sealed

	if err := s.repo.Create(channel); err != nil {
		return nil, err
	}
	return s.toResponse(channel), nil
}

func (s *ChannelService) GetByID(id int) (*model.ChannelResponse, error) {
	channel, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	return s.toResponse(channel), nil
}

func (s *ChannelService) List() ([]*model.ChannelResponse, error) {
	channels, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	responses := make([]*model.ChannelResponse, len(channels))
	for i, ch := range channels {
		responses[i] = s.toResponse(ch)
	}
	return responses, nil
}

func (s *ChannelService) Update(id int, req *model.ChannelRequest) (*model.ChannelResponse, error) {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrChannelNotFound
	}

	existing.Type = req.Type
	existing.Name = req.Name
	existing.BaseURL = strings.TrimSuffix(req.BaseURL, "/")
	existing.Container = strings.TrimSpace(req.Container)
	existing.Enabled = req.Enabled
	existing.ModelsJSON = encodeModels(req.Models)

	// 未提供 API Key 时保留原值
	if apiKey := strings.TrimSpace(req.APIKey); apiKey != "" {
		sealed, err := s.sealer.Seal(apiKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt api key: %w", err)
		}
		existing.APIKeyEnc = sealed
	}

	if err := s.repo.Update(existing); err != nil {
		return nil, err
	}
	return s.toResponse(existing), nil
}

func (s *ChannelService) Delete(id int) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrChannelNotFound
	}
	return s.repo.Delete(id)
}

func (s *ChannelService) SetEnabled(id int, enabled bool) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrChannelNotFound
	}
	return s.repo.SetEnabled(id, enabled)
}

func (s *ChannelService) TestConnection(id int) (*model.TestChannelResponse, error) {
	channel, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}

	apiKey, err := s.sealer.Open(channel.APIKeyEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key: %w", err)
	}

	req, err := newTestRequest(channel, apiKey)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &model.TestChannelResponse{
			Success:   false,
			Message:   fmt.Sprintf("连接失败: %v", err),
			LatencyMs: latency,
		}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &model.TestChannelResponse{
			Success:   true,
			Message:   fmt.Sprintf("连接成功 (HTTP %d)", resp.StatusCode),
			LatencyMs: latency,
		}, nil
	}

	return &model.TestChannelResponse{
		Success:   false,
		Message:   fmt.Sprintf("请求失败: HTTP %d", resp.StatusCode),
		LatencyMs: latency,
	}, nil
}

func newTestRequest(channel *model.Channel, apiKey string) (*http.Request, error) {
	testURL := channel.BaseURL + "/v1/models"
	if channel.Type == model.ChannelTypeHuggingFace {
		testURL = channel.BaseURL + "/health"
	}

	req, err := http.NewRequest(http.MethodGet, testURL, nil)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return req, nil
	}

	switch channel.Type {
	case model.ChannelTypeClaude:
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

func (s *ChannelService) toResponse(channel *model.Channel) *model.ChannelResponse {
	models := channel.ModelNames()
	if models == nil {
		models = []string{}
	}

	return &model.ChannelResponse{
		ID:        channel.ID,
		Type:      channel.Type,
		Name:      channel.Name,
		BaseURL:   channel.BaseURL,
		Container: channel.Container,
		HasAPIKey: channel.APIKeyEnc != "",
		Enabled:   channel.Enabled,
		Models:    models,
		CreatedAt: channel.CreatedAt,
		UpdatedAt: channel.UpdatedAt,
	}
}
