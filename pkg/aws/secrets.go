package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrSecretNotString is returned for binary secrets, which the storefront
// never stores.
var ErrSecretNotString = errors.New("secret has no string value")

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient reads storefront credentials from Secrets Manager. Values are
// fetched once per process.
type SecretsClient struct {
	api   secretsAPI
	mu    sync.Mutex
	cache map[string]map[string]string
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return newSecretsClient(secretsmanager.NewFromConfig(cfg))
}

func newSecretsClient(api secretsAPI) *SecretsClient {
	return &SecretsClient{api: api, cache: make(map[string]map[string]string)}
}

// GetSecretMap reads a secret holding a flat JSON object of credential
// names to values, e.g. {"MONGO_URL": "...", "RAZORPAY_KEY_SECRET": "..."}.
func (s *SecretsClient) GetSecretMap(ctx context.Context, name string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.cache[name]; ok {
		return m, nil
	}

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("read storefront secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("read storefront secret %s: %w", name, ErrSecretNotString)
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &m); err != nil {
		return nil, fmt.Errorf("storefront secret %s must be a JSON object of strings: %w", name, err)
	}
	s.cache[name] = m
	return m, nil
}
