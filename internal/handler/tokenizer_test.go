package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"tokenizermanager/internal/database"
	"tokenizermanager/internal/model"
	"tokenizermanager/internal/repository"
	"tokenizermanager/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	dir, err := os.MkdirTemp("", "tokenizer-handler-*")
	if err != nil {
		panic(err)
	}
	if err := database.Init(filepath.Join(dir, "test.db")); err != nil {
		panic(err)
	}
	code := m.Run()
	_ = database.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type stubManager struct{}

func (stubManager) Update(_ context.Context, _, modelName string, _ bool) (string, error) {
	if modelName == "broken" {
		return "boom", errors.New("exit status 1")
	}
	return "done", nil
}

func (stubManager) Verify(_ context.Context, _, _ string) (string, error) {
	return "fine", nil
}

func (stubManager) CacheSize(_ context.Context, _, _ string) (int64, error) {
	return 1024, nil
}

func (stubManager) CacheLocation(modelName string) string {
	return "/data/cache/" + modelName
}

type envelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    json.RawMessage      `json:"data"`
	Results []model.UpdateResult `json:"results"`
}

func setupTokenizerRouter(t *testing.T) (*gin.Engine, *model.Channel, *model.Channel) {
	t.Helper()
	channels := repository.NewChannelRepository()

	hf := &model.Channel{
		Type:       model.ChannelTypeHuggingFace,
		Name:       "tei",
		BaseURL:    "http://localhost:8080",
		Enabled:    true,
		ModelsJSON: `["BAAI/bge-reranker-base","broken"]`,
	}
	require.NoError(t, channels.Create(hf))
	other := &model.Channel{
		Type:       model.ChannelTypeOpenAI,
		Name:       "openai",
		BaseURL:    "https://api.openai.com",
		Enabled:    true,
		ModelsJSON: `["gpt-4o"]`,
	}
	require.NoError(t, channels.Create(other))
	t.Cleanup(func() {
		_ = channels.Delete(hf.ID)
		_ = channels.Delete(other.ID)
	})

	svc := service.NewTokenizerServiceWith(service.TokenizerServiceDeps{
		Channels: channels,
		States:   repository.NewTokenizerStateRepository(),
		Manager:  stubManager{},
	})
	h := NewTokenizerHandler(svc)

	r := gin.New()
	g := r.Group("/api/tokenizer")
	g.GET("/", h.List)
	g.GET("/verify", h.Verify)
	g.POST("/update", h.Update)
	return r, hf, other
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestTokenizerHandler_List(t *testing.T) {
	r, hf, _ := setupTokenizerRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/tokenizer/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var list []model.TokenizerInfo
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, hf.ID, list[0].ChannelID)
	assert.Equal(t, "BAAI/bge-reranker-base", list[0].ModelName)
	assert.Equal(t, model.TokenizerStatusAvailable, list[0].Status)
	assert.Equal(t, model.SizeUnknown, list[0].Size)
}

func TestTokenizerHandler_VerifyParams(t *testing.T) {
	r, hf, _ := setupTokenizerRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/tokenizer/verify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "缺少channel_id参数", env.Message)

	w, env = doJSON(t, r, http.MethodGet, "/api/tokenizer/verify?channel_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "channel_id参数无效", env.Message)

	w, env = doJSON(t, r, http.MethodGet, "/api/tokenizer/verify?channel_id=999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "渠道不存在", env.Message)

	w, env = doJSON(t, r, http.MethodGet, "/api/tokenizer/verify?channel_id="+strconv.Itoa(hf.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var results []model.UpdateResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 2)
	assert.Equal(t, "验证通过: fine", results[0].Message)
}

func TestTokenizerHandler_Update(t *testing.T) {
	r, hf, other := setupTokenizerRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/tokenizer/update", model.TokenizerUpdateRequest{
		ChannelID: hf.ID,
		Models:    []string{"BAAI/bge-reranker-base", "broken"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "更新完成: 1/2 成功", env.Message)
	require.Len(t, env.Results, 2)
	assert.False(t, env.Results[1].Success)
	assert.Equal(t, "更新失败: boom", env.Results[1].Message)

	// 更新后列表反映持久化的状态
	_, listEnv := doJSON(t, r, http.MethodGet, "/api/tokenizer/", nil)
	var list []model.TokenizerInfo
	require.NoError(t, json.Unmarshal(listEnv.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "1.0 KiB", list[0].Size)
	assert.Equal(t, model.TokenizerStatusError, list[1].Status)

	w, env = doJSON(t, r, http.MethodPost, "/api/tokenizer/update", model.TokenizerUpdateRequest{
		ChannelID: other.ID,
		Models:    []string{"gpt-4o"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "只支持HuggingFace类型的渠道", env.Message)

	// 缺少 channel_id 时按不存在的渠道处理
	w, env = doJSON(t, r, http.MethodPost, "/api/tokenizer/update", map[string]any{"models": []string{"x"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "渠道不存在", env.Message)

	w, env = doJSON(t, r, http.MethodPost, "/api/tokenizer/update", map[string]any{"channel_id": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "请求参数错误")
}
