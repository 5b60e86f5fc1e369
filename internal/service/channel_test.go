package service

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tokenizermanager/internal/crypto"
	"tokenizermanager/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelService_APIKeySealed(t *testing.T) {
	sealer, err := crypto.NewSealer("test-secret")
	require.NoError(t, err)
	repo := newFakeChannelRepo()
	svc := NewChannelServiceWithRepo(repo, sealer)

	resp, err := svc.Create(&model.ChannelRequest{
		Type:    model.ChannelTypeOpenAI,
		Name:    "openai",
		BaseURL: "https://api.example.com/",
		APIKey:  " sk-abc ",
		Models:  []string{" gpt-4o ", ""},
	})
	require.NoError(t, err)
	assert.True(t, resp.HasAPIKey)
	assert.Equal(t, "https://api.example.com", resp.BaseURL)
	assert.Equal(t, []string{"gpt-4o"}, resp.Models)

	stored, err := repo.GetByID(resp.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.APIKeyEnc, "sk-abc")
	plain, err := sealer.Open(stored.APIKeyEnc)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", plain)

	// 更新时不传 API Key 保留原值
	before := stored.APIKeyEnc
	_, err = svc.Update(resp.ID, &model.ChannelRequest{
		Type:    model.ChannelTypeOpenAI,
		Name:    "renamed",
		BaseURL: "https://api.example.com",
	})
	require.NoError(t, err)
	stored, _ = repo.GetByID(resp.ID)
	assert.Equal(t, before, stored.APIKeyEnc)
	assert.Equal(t, "renamed", stored.Name)
}

func TestChannelService_APIKeyWithoutSealer(t *testing.T) {
	svc := NewChannelServiceWithRepo(newFakeChannelRepo(), nil)

	_, err := svc.Create(&model.ChannelRequest{
		Type:    model.ChannelTypeClaude,
		Name:    "claude",
		BaseURL: "https://api.example.com",
		APIKey:  "key",
	})
	assert.ErrorIs(t, err, crypto.ErrEncryptionKeyNotSet)

	resp, err := svc.Create(&model.ChannelRequest{
		Type:    model.ChannelTypeHuggingFace,
		Name:    "tei",
		BaseURL: "http://localhost:8080",
	})
	require.NoError(t, err)
	assert.False(t, resp.HasAPIKey)
}

func TestChannelService_TestConnection(t *testing.T) {
	var gotPath, gotAuth, gotAnthropicKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAnthropicKey = r.Header.Get("x-api-key")
		if r.URL.Path == "/v1/models" && gotAuth == "" && gotAnthropicKey == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sealer, err := crypto.NewSealer("test-secret")
	require.NoError(t, err)
	svc := NewChannelServiceWithRepo(newFakeChannelRepo(), sealer)

	hf, err := svc.Create(&model.ChannelRequest{Type: model.ChannelTypeHuggingFace, Name: "tei", BaseURL: srv.URL})
	require.NoError(t, err)
	result, err := svc.TestConnection(hf.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "/health", gotPath)
	assert.Empty(t, gotAuth)

	claude, err := svc.Create(&model.ChannelRequest{Type: model.ChannelTypeClaude, Name: "c", BaseURL: srv.URL, APIKey: "ck"})
	require.NoError(t, err)
	result, err = svc.TestConnection(claude.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "/v1/models", gotPath)
	assert.Equal(t, "ck", gotAnthropicKey)

	openai, err := svc.Create(&model.ChannelRequest{Type: model.ChannelTypeOpenAI, Name: "o", BaseURL: srv.URL})
	require.NoError(t, err)
	result, err = svc.TestConnection(openai.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "请求失败: HTTP 401", result.Message)

	_, err = svc.TestConnection(9999)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}
