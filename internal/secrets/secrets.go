package secrets

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Resolver fetches API keys from AWS Secrets Manager. Environment-provided
// values short-circuit the lookup, which keeps local development off AWS.
type Resolver struct {
	client *secretsmanager.Client
}

// NewResolver builds a Resolver using the default AWS credential chain.
func NewResolver(ctx context.Context) (*Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Resolver{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// Resolve returns envValue when set, otherwise fetches the named secret.
// An empty secret name with no env value is an error.
func (r *Resolver) Resolve(ctx context.Context, envValue, secretName string) (string, error) {
	if envValue != "" {
		return envValue, nil
	}
	if secretName == "" {
		return "", fmt.Errorf("no value and no secret name configured")
	}

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret %s: %w", secretName, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretName)
	}
	return *out.SecretString, nil
}
