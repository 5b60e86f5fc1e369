package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tokenizermanager/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannelRepo struct {
	channels map[int]*model.Channel
	order    []int
}

func newFakeChannelRepo(channels ...*model.Channel) *fakeChannelRepo {
	r := &fakeChannelRepo{channels: make(map[int]*model.Channel)}
	for _, ch := range channels {
		r.channels[ch.ID] = ch
		r.order = append(r.order, ch.ID)
	}
	return r
}

func (r *fakeChannelRepo) Create(channel *model.Channel) error {
	channel.ID = len(r.order) + 1
	r.channels[channel.ID] = channel
	r.order = append(r.order, channel.ID)
	return nil
}

func (r *fakeChannelRepo) GetByID(id int) (*model.Channel, error) {
	return r.channels[id], nil
}

func (r *fakeChannelRepo) List() ([]*model.Channel, error) {
	out := make([]*model.Channel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.channels[id])
	}
	return out, nil
}

func (r *fakeChannelRepo) ListEnabled() ([]*model.Channel, error) {
	var out []*model.Channel
	for _, id := range r.order {
		if r.channels[id].Enabled {
			out = append(out, r.channels[id])
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) Update(channel *model.Channel) error {
	r.channels[channel.ID] = channel
	return nil
}

func (r *fakeChannelRepo) Delete(id int) error {
	delete(r.channels, id)
	return nil
}

func (r *fakeChannelRepo) SetEnabled(id int, enabled bool) error {
	r.channels[id].Enabled = enabled
	return nil
}

type stateKey struct {
	channelID int
	model     string
}

type fakeStateRepo struct {
	mu      sync.Mutex
	states  map[stateKey]*model.TokenizerState
	history []model.TokenizerStatus
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[stateKey]*model.TokenizerState)}
}

func (r *fakeStateRepo) ListByChannel(channelID int) (map[string]*model.TokenizerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.TokenizerState)
	for k, v := range r.states {
		if k.channelID == channelID {
			out[k.model] = v
		}
	}
	return out, nil
}

func (r *fakeStateRepo) Get(channelID int, modelName string) (*model.TokenizerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[stateKey{channelID, modelName}], nil
}

func (r *fakeStateRepo) SetStatus(channelID int, modelName string, status model.TokenizerStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := stateKey{channelID, modelName}
	st, ok := r.states[k]
	if !ok {
		st = &model.TokenizerState{ChannelID: channelID, ModelName: modelName, SizeBytes: -1}
		r.states[k] = st
	}
	st.Status = status
	st.Message = message
	r.history = append(r.history, status)
	return nil
}

func (r *fakeStateRepo) MarkUpdated(channelID int, modelName string, sizeBytes int64, message string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := at
	r.states[stateKey{channelID, modelName}] = &model.TokenizerState{
		ChannelID:   channelID,
		ModelName:   modelName,
		Status:      model.TokenizerStatusAvailable,
		SizeBytes:   sizeBytes,
		Message:     message,
		LastUpdated: &t,
	}
	r.history = append(r.history, model.TokenizerStatusAvailable)
	return nil
}

type managerCall struct {
	action    string
	container string
	model     string
	force     bool
}

type fakeManager struct {
	mu      sync.Mutex
	calls   []managerCall
	failFor map[string]bool
	size    int64
	sizeErr error
}

func (m *fakeManager) record(c managerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *fakeManager) Update(_ context.Context, container, modelName string, force bool) (string, error) {
	m.record(managerCall{"update", container, modelName, force})
	if m.failFor[modelName] {
		return "network down", errors.New("exit status 1")
	}
	return "ok", nil
}

func (m *fakeManager) Verify(_ context.Context, container, modelName string) (string, error) {
	m.record(managerCall{"verify", container, modelName, false})
	if m.failFor[modelName] {
		return "missing cache", errors.New("exit status 1")
	}
	return "ok", nil
}

func (m *fakeManager) CacheSize(_ context.Context, _, _ string) (int64, error) {
	return m.size, m.sizeErr
}

func (m *fakeManager) CacheLocation(modelName string) string {
	return "/data/cache/models--" + modelName
}

type fakeProber struct {
	status model.TokenizerStatus
	calls  int
}

func (p *fakeProber) Probe(_ context.Context, _ string) model.TokenizerStatus {
	p.calls++
	return p.status
}

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func hfChannel(id int, name, baseURL, models string) *model.Channel {
	return &model.Channel{
		ID:         id,
		Type:       model.ChannelTypeHuggingFace,
		Name:       name,
		BaseURL:    baseURL,
		Enabled:    true,
		ModelsJSON: models,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(channels *fakeChannelRepo, states *fakeStateRepo, mgr *fakeManager, prober *fakeProber) *TokenizerService {
	return NewTokenizerServiceWith(TokenizerServiceDeps{
		Channels:          channels,
		States:            states,
		Manager:           mgr,
		Resolver:          NewContainerResolver("8080=tei-a,8081=tei-b", "tei-reranker"),
		Prober:            prober,
		VerifyConcurrency: 2,
		Now:               func() time.Time { return fixedNow },
	})
}

func TestTokenizerService_List(t *testing.T) {
	disabled := hfChannel(3, "off", "http://localhost:8082", `["c"]`)
	disabled.Enabled = false
	openai := hfChannel(4, "openai", "http://api", `["gpt-4"]`)
	openai.Type = model.ChannelTypeOpenAI

	channels := newFakeChannelRepo(
		hfChannel(1, "tei-a", "http://localhost:8080", `["a1", " ", "a2"]`),
		hfChannel(2, "tei-b", "http://localhost:8081", `[]`),
		disabled,
		openai,
	)
	states := newFakeStateRepo()
	require.NoError(t, states.MarkUpdated(1, "a2", 3*1024*1024, "ok", fixedNow))
	prober := &fakeProber{status: model.TokenizerStatusError}

	svc := newTestService(channels, states, &fakeManager{}, prober)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "a1", list[0].ModelName)
	assert.Equal(t, model.TokenizerStatusError, list[0].Status)
	assert.Equal(t, model.SizeUnknown, list[0].Size)
	assert.Equal(t, channels.channels[1].CreatedAt, list[0].LastUpdated)
	assert.Equal(t, 1, list[0].ChannelID)
	assert.Equal(t, "tei-a", list[0].ChannelName)
	assert.Equal(t, "/data/cache/models--a1", list[0].CacheLocation)

	assert.Equal(t, "a2", list[1].ModelName)
	assert.Equal(t, model.TokenizerStatusAvailable, list[1].Status)
	assert.Equal(t, "3.0 MiB", list[1].Size)
	assert.Equal(t, fixedNow, list[1].LastUpdated)

	assert.Equal(t, 1, prober.calls)
}

func TestTokenizerService_ListEmptyIsNotNil(t *testing.T) {
	svc := newTestService(newFakeChannelRepo(), newFakeStateRepo(), &fakeManager{}, &fakeProber{})
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestTokenizerService_Update(t *testing.T) {
	channels := newFakeChannelRepo(hfChannel(1, "tei-a", "http://localhost:8080", `["m1","m2"]`))
	states := newFakeStateRepo()
	mgr := &fakeManager{failFor: map[string]bool{"m2": true}, size: 2048}
	svc := newTestService(channels, states, mgr, &fakeProber{})

	resp, err := svc.Update(context.Background(), &model.TokenizerUpdateRequest{
		ChannelID: 1,
		Models:    []string{"m1", "m2"},
		Force:     true,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "更新完成: 1/2 成功", resp.Message)
	assert.Equal(t, fixedNow, resp.UpdatedAt)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, model.UpdateResult{ModelName: "m1", Success: true, Message: "更新成功: ok"}, resp.Results[0])
	assert.Equal(t, model.UpdateResult{ModelName: "m2", Success: false, Message: "更新失败: network down"}, resp.Results[1])

	require.Len(t, mgr.calls, 2)
	assert.Equal(t, managerCall{"update", "tei-a", "m1", true}, mgr.calls[0])

	m1, _ := states.Get(1, "m1")
	assert.Equal(t, model.TokenizerStatusAvailable, m1.Status)
	assert.Equal(t, int64(2048), m1.SizeBytes)
	m2, _ := states.Get(1, "m2")
	assert.Equal(t, model.TokenizerStatusError, m2.Status)

	assert.Equal(t, []model.TokenizerStatus{
		model.TokenizerStatusUpdating, model.TokenizerStatusAvailable,
		model.TokenizerStatusUpdating, model.TokenizerStatusError,
	}, states.history)
}

func TestTokenizerService_UpdateAllFailed(t *testing.T) {
	channels := newFakeChannelRepo(hfChannel(1, "tei-a", "http://localhost:8080", `["m1"]`))
	mgr := &fakeManager{failFor: map[string]bool{"m1": true}}
	svc := newTestService(channels, newFakeStateRepo(), mgr, &fakeProber{})

	resp, err := svc.Update(context.Background(), &model.TokenizerUpdateRequest{ChannelID: 1, Models: []string{"m1"}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "更新完成: 0/1 成功", resp.Message)
}

func TestTokenizerService_UpdateSizeUnknown(t *testing.T) {
	channels := newFakeChannelRepo(hfChannel(1, "tei-a", "http://localhost:8080", `["m1"]`))
	states := newFakeStateRepo()
	mgr := &fakeManager{sizeErr: errors.New("du failed")}
	svc := newTestService(channels, states, mgr, &fakeProber{})

	resp, err := svc.Update(context.Background(), &model.TokenizerUpdateRequest{ChannelID: 1, Models: []string{"m1"}})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	st, _ := states.Get(1, "m1")
	assert.Equal(t, int64(-1), st.SizeBytes)
}

func TestTokenizerService_UpdateErrors(t *testing.T) {
	openai := hfChannel(2, "openai", "http://api", `["gpt"]`)
	openai.Type = model.ChannelTypeOpenAI
	svc := newTestService(newFakeChannelRepo(openai), newFakeStateRepo(), &fakeManager{}, &fakeProber{})

	_, err := svc.Update(context.Background(), &model.TokenizerUpdateRequest{ChannelID: 99, Models: []string{"x"}})
	assert.ErrorIs(t, err, ErrChannelNotFound)

	_, err = svc.Update(context.Background(), &model.TokenizerUpdateRequest{ChannelID: 2, Models: []string{"gpt"}})
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestTokenizerService_Verify(t *testing.T) {
	ch := hfChannel(1, "tei-b", "http://localhost:8081", `["v1","v2","v3"]`)
	states := newFakeStateRepo()
	mgr := &fakeManager{failFor: map[string]bool{"v2": true}}
	svc := newTestService(newFakeChannelRepo(ch), states, mgr, &fakeProber{})

	results, err := svc.Verify(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "v1", results[0].ModelName)
	assert.True(t, results[0].Success)
	assert.Equal(t, "验证通过: ok", results[0].Message)
	assert.Equal(t, "v2", results[1].ModelName)
	assert.False(t, results[1].Success)
	assert.Equal(t, "验证失败: missing cache", results[1].Message)
	assert.Equal(t, "v3", results[2].ModelName)

	for _, c := range mgr.calls {
		assert.Equal(t, "tei-b", c.container)
	}
	v2, _ := states.Get(1, "v2")
	assert.Equal(t, model.TokenizerStatusError, v2.Status)

	_, err = svc.Verify(context.Background(), 42)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestTokenizerService_UnknownContainer(t *testing.T) {
	ch := hfChannel(1, "tei-x", "http://localhost:9999", `["m"]`)
	svc := NewTokenizerServiceWith(TokenizerServiceDeps{
		Channels: newFakeChannelRepo(ch),
		States:   newFakeStateRepo(),
		Manager:  &fakeManager{},
		Resolver: NewContainerResolver("", ""),
	})

	resp, err := svc.Update(context.Background(), &model.TokenizerUpdateRequest{ChannelID: 1, Models: []string{"m"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Results[0].Success)
	assert.Equal(t, "无法确定容器名称", resp.Results[0].Message)
}
