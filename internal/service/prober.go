package service

import (
	"context"
	"net/http"
	"time"

	"tokenizermanager/internal/model"

	"github.com/sirupsen/logrus"
)

// StatusProber 探测渠道上 TEI 服务的可用性
type StatusProber interface {
	Probe(ctx context.Context, baseURL string) model.TokenizerStatus
}

type HTTPStatusProber struct {
	client *http.Client
}

func NewHTTPStatusProber(timeout time.Duration) *HTTPStatusProber {
	return &HTTPStatusProber{client: &http.Client{Timeout: timeout}}
}

func (p *HTTPStatusProber) Probe(ctx context.Context, baseURL string) model.TokenizerStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return model.TokenizerStatusError
	}
	resp, err := p.client.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("base_url", baseURL).Debug("TEI 健康检查失败")
		return model.TokenizerStatusError
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return model.TokenizerStatusAvailable
	}
	return model.TokenizerStatusError
}
