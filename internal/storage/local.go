package storage

import (
	"context"
	"strings"
)

// LocalResolver отдает файлы по публичному base_url
type LocalResolver struct {
	baseURL string
}

func NewLocalResolver(cfg Config) *LocalResolver {
	return &LocalResolver{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

func (r *LocalResolver) ResolveURL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if passthrough(key) {
		return key, nil
	}
	return r.baseURL + "/" + strings.TrimLeft(key, "/"), nil
}
