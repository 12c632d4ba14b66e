package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsManagerAPI is the slice of the Secrets Manager client we consume.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore reads the vault logon credential from AWS Secrets Manager. The
// secret value must be a JSON object with "username" and "password" fields.
type AWSStore struct {
	client    secretsManagerAPI
	secretARN string
}

// NewAWSStore creates a store backed by AWS Secrets Manager. Credentials for
// AWS itself come from the standard environment variables; an explicit static
// provider is used so no implicit config-file chain is consulted.
func NewAWSStore(region, secretARN string) *AWSStore {
	cfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			os.Getenv("AWS_SESSION_TOKEN"),
		),
		RetryMaxAttempts: 5,
	}
	return &AWSStore{
		client:    secretsmanager.NewFromConfig(cfg),
		secretARN: secretARN,
	}
}

// NewAWSStoreWithClient creates a store with an injected client, for tests.
func NewAWSStoreWithClient(client secretsManagerAPI, secretARN string) *AWSStore {
	return &AWSStore{client: client, secretARN: secretARN}
}

// LogonCredential implements Store.
func (s *AWSStore) LogonCredential(ctx context.Context) (Credential, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretARN),
	})
	if err != nil {
		return Credential{}, fmt.Errorf("fetching logon credential from secrets manager: %w", err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return Credential{}, fmt.Errorf("secret %s has no string value", s.secretARN)
	}
	return parseCredential([]byte(*out.SecretString))
}
