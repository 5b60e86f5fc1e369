package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tokenizermanager/internal/config"
	"tokenizermanager/internal/executor"
	"tokenizermanager/internal/metrics"
	"tokenizermanager/internal/model"
	"tokenizermanager/internal/repository"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrContainerUnknown = errors.New("无法确定容器名称")

// TokenizerManager 在 TEI 容器中执行分词器维护命令
type TokenizerManager interface {
	Update(ctx context.Context, container, modelName string, force bool) (string, error)
	Verify(ctx context.Context, container, modelName string) (string, error)
	CacheSize(ctx context.Context, container, modelName string) (int64, error)
	CacheLocation(modelName string) string
}

var _ TokenizerManager = (*executor.Manager)(nil)

type TokenizerServiceDeps struct {
	Channels          repository.ChannelRepositoryInterface
	States            repository.TokenizerStateRepositoryInterface
	Manager           TokenizerManager
	Resolver          *ContainerResolver
	Prober            StatusProber
	Metrics           *metrics.Metrics
	VerifyConcurrency int
	Now               func() time.Time
}

type TokenizerService struct {
	channels          repository.ChannelRepositoryInterface
	states            repository.TokenizerStateRepositoryInterface
	manager           TokenizerManager
	resolver          *ContainerResolver
	prober            StatusProber
	metrics           *metrics.Metrics
	verifyConcurrency int
	now               func() time.Time
}

func NewTokenizerServiceWith(deps TokenizerServiceDeps) *TokenizerService {
	s := &TokenizerService{
		channels:          deps.Channels,
		states:            deps.States,
		manager:           deps.Manager,
		resolver:          deps.Resolver,
		prober:            deps.Prober,
		metrics:           deps.Metrics,
		verifyConcurrency: deps.VerifyConcurrency,
		now:               deps.Now,
	}
	if s.verifyConcurrency < 1 {
		s.verifyConcurrency = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.resolver == nil {
		s.resolver = NewContainerResolver(config.DefaultContainerMap, "tei-reranker")
	}
	return s
}

// NewTokenizerService 使用 SQLite 仓库和 docker exec 执行器创建服务
func NewTokenizerService(cfg *config.TokenizerConfig, m *metrics.Metrics) *TokenizerService {
	runner := executor.NewDockerRunner(cfg.DockerBin, cfg.ExecTimeout)
	return NewTokenizerServiceWith(TokenizerServiceDeps{
		Channels:          repository.NewChannelRepository(),
		States:            repository.NewTokenizerStateRepository(),
		Manager:           executor.NewManager(runner, cfg.ManagerScript, cfg.CacheDir),
		Resolver:          NewContainerResolver(cfg.ContainerMap, cfg.DefaultContainer),
		Prober:            NewHTTPStatusProber(cfg.ProbeTimeout),
		Metrics:           m,
		VerifyConcurrency: cfg.VerifyConcurrency,
	})
}

// List 返回所有启用的 HuggingFace 渠道下每个模型的分词器信息
func (s *TokenizerService) List(ctx context.Context) ([]model.TokenizerInfo, error) {
	channels, err := s.channels.ListEnabled()
	if err != nil {
		return nil, err
	}

	tokenizers := make([]model.TokenizerInfo, 0)
	for _, channel := range channels {
		if channel.Type != model.ChannelTypeHuggingFace {
			continue
		}
		models := channel.ModelNames()
		if len(models) == 0 {
			continue
		}

		states, err := s.states.ListByChannel(channel.ID)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer states for channel %d: %w", channel.ID, err)
		}

		// 每个渠道最多探测一次
		var probed model.TokenizerStatus
		for _, modelName := range models {
			info := model.TokenizerInfo{
				ModelName:     modelName,
				Status:        model.TokenizerStatusAvailable,
				LastUpdated:   channel.CreatedAt,
				Size:          model.SizeUnknown,
				CacheLocation: s.manager.CacheLocation(modelName),
				ChannelID:     channel.ID,
				ChannelName:   channel.Name,
			}

			if state, ok := states[modelName]; ok {
				info.Status = state.Status.Normalize()
				if state.LastUpdated != nil {
					info.LastUpdated = *state.LastUpdated
				}
				if state.SizeBytes >= 0 {
					info.Size = humanize.IBytes(uint64(state.SizeBytes))
				}
			} else if s.prober != nil {
				if probed == "" {
					probed = s.prober.Probe(ctx, channel.BaseURL)
				}
				info.Status = probed
			}

			tokenizers = append(tokenizers, info)
		}
	}
	return tokenizers, nil
}

func (s *TokenizerService) getChannel(channelID int) (*model.Channel, error) {
	channel, err := s.channels.GetByID(channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	return channel, nil
}

// Verify 验证渠道下所有模型的分词器缓存，结果顺序与渠道模型顺序一致
func (s *TokenizerService) Verify(ctx context.Context, channelID int) ([]model.UpdateResult, error) {
	channel, err := s.getChannel(channelID)
	if err != nil {
		return nil, err
	}

	container := s.resolver.Resolve(channel)
	models := channel.ModelNames()
	results := make([]model.UpdateResult, len(models))

	var g errgroup.Group
	g.SetLimit(s.verifyConcurrency)
	for i, modelName := range models {
		g.Go(func() error {
			results[i] = s.verifyModel(ctx, channel, container, modelName)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *TokenizerService) verifyModel(ctx context.Context, channel *model.Channel, container, modelName string) model.UpdateResult {
	log := logrus.WithFields(logrus.Fields{
		"channel_id": channel.ID,
		"model":      modelName,
		"container":  container,
	})
	log.Info("验证分词器")

	if container == "" {
		return model.UpdateResult{ModelName: modelName, Success: false, Message: ErrContainerUnknown.Error()}
	}

	start := time.Now()
	output, err := s.manager.Verify(ctx, container, modelName)
	s.metrics.ObserveTokenizerOp("verify", err == nil, time.Since(start))

	if err != nil {
		log.WithError(err).Warn("分词器验证失败")
		message := "验证失败: " + output
		if serr := s.states.SetStatus(channel.ID, modelName, model.TokenizerStatusError, message); serr != nil {
			log.WithError(serr).Error("保存分词器状态失败")
		}
		return model.UpdateResult{ModelName: modelName, Success: false, Message: message}
	}

	message := "验证通过: " + output
	if serr := s.states.SetStatus(channel.ID, modelName, model.TokenizerStatusAvailable, message); serr != nil {
		log.WithError(serr).Error("保存分词器状态失败")
	}
	return model.UpdateResult{ModelName: modelName, Success: true, Message: message}
}

// Update 依次更新请求中的模型；只要有一个成功即视为整体成功
func (s *TokenizerService) Update(ctx context.Context, req *model.TokenizerUpdateRequest) (*model.TokenizerUpdateResponse, error) {
	channel, err := s.getChannel(req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != model.ChannelTypeHuggingFace {
		return nil, ErrUnsupportedChannel
	}

	container := s.resolver.Resolve(channel)
	results := make([]model.UpdateResult, 0, len(req.Models))
	for _, modelName := range req.Models {
		results = append(results, s.updateModel(ctx, channel, container, modelName, req.Force))
	}

	successCount := 0
	for _, result := range results {
		if result.Success {
			successCount++
		}
	}

	return &model.TokenizerUpdateResponse{
		Success:   successCount > 0,
		Message:   fmt.Sprintf("更新完成: %d/%d 成功", successCount, len(req.Models)),
		UpdatedAt: s.now(),
		Results:   results,
	}, nil
}

func (s *TokenizerService) updateModel(ctx context.Context, channel *model.Channel, container, modelName string, force bool) model.UpdateResult {
	log := logrus.WithFields(logrus.Fields{
		"channel_id": channel.ID,
		"model":      modelName,
		"container":  container,
		"force":      force,
	})
	log.Info("更新分词器")

	if container == "" {
		return model.UpdateResult{ModelName: modelName, Success: false, Message: ErrContainerUnknown.Error()}
	}

	if err := s.states.SetStatus(channel.ID, modelName, model.TokenizerStatusUpdating, ""); err != nil {
		log.WithError(err).Error("保存分词器状态失败")
	}

	start := time.Now()
	output, err := s.manager.Update(ctx, container, modelName, force)
	s.metrics.ObserveTokenizerOp("update", err == nil, time.Since(start))

	if err != nil {
		log.WithError(err).Warn("分词器更新失败")
		message := "更新失败: " + output
		if serr := s.states.SetStatus(channel.ID, modelName, model.TokenizerStatusError, message); serr != nil {
			log.WithError(serr).Error("保存分词器状态失败")
		}
		return model.UpdateResult{ModelName: modelName, Success: false, Message: message}
	}

	size, err := s.manager.CacheSize(ctx, container, modelName)
	if err != nil {
		log.WithError(err).Warn("读取缓存大小失败")
		size = -1
	}

	message := "更新成功: " + output
	if err := s.states.MarkUpdated(channel.ID, modelName, size, message, s.now()); err != nil {
		log.WithError(err).Error("保存分词器状态失败")
	}
	return model.UpdateResult{ModelName: modelName, Success: true, Message: message}
}
