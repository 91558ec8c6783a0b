package config

import (
	"context"
	"os"
)

// SecretProvider resolves secret references (SSM parameter paths or
// equivalent identifiers) to plaintext values. Keys that cannot be found are
// omitted from the returned map.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// EnvVarProvider resolves secret keys as OS environment variables. It is used
// by the local pipeline runner, where secrets come from the shell or .env.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks up every key with os.LookupEnv.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
