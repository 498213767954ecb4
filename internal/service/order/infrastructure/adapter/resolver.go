package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ordersystem/internal/pkg/nacos"
)

// Resolver 给出下游服务当前的基础地址，例如 http://10.0.0.3:8082
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver 使用配置中写死的地址
type StaticResolver string

func (r StaticResolver) Resolve(context.Context) (string, error) {
	if r == "" {
		return "", errors.New("static base url is empty")
	}
	return strings.TrimRight(string(r), "/"), nil
}

// NacosResolver 每次调用都从 Nacos 选取一个健康实例
type NacosResolver struct {
	client      *nacos.Client
	serviceName string
}

func NewNacosResolver(client *nacos.Client, serviceName string) *NacosResolver {
	return &NacosResolver{client: client, serviceName: serviceName}
}

func (r *NacosResolver) Resolve(context.Context) (string, error) {
	ip, port, err := r.client.DiscoverServiceInstance(r.serviceName)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", r.serviceName, err)
	}
	return fmt.Sprintf("http://%s:%d", ip, port), nil
}
