package service

import (
	"net/url"
	"strings"

	"tokenizermanager/internal/model"
)

// ContainerResolver 根据渠道推断 TEI 容器名称
type ContainerResolver struct {
	byPort   map[string]string
	fallback string
}

func NewContainerResolver(mapping, fallback string) *ContainerResolver {
	return &ContainerResolver{
		byPort:   ParseContainerMap(mapping),
		fallback: fallback,
	}
}

// ParseContainerMap 解析 "8080=tei-a,8081=tei-b" 形式的端口映射
func ParseContainerMap(s string) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		port, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		port = strings.TrimSpace(port)
		name = strings.TrimSpace(name)
		if port == "" || name == "" {
			continue
		}
		m[port] = name
	}
	return m
}

// Resolve 优先使用渠道显式配置的容器，其次按端口映射，最后使用默认容器
func (r *ContainerResolver) Resolve(channel *model.Channel) string {
	if channel.Container != "" {
		return channel.Container
	}
	if u, err := url.Parse(channel.BaseURL); err == nil {
		if name, ok := r.byPort[u.Port()]; ok {
			return name
		}
	}
	return r.fallback
}
