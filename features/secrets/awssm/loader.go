// Package awssm loads runtime secrets from AWS Secrets Manager; today that is
// the Firebase service account the notifier authenticates with.
package awssm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// DefaultFirebaseSecretPath is where the Firebase service account lives when
// FIREBASE_SECRETS_PATH is not set.
const DefaultFirebaseSecretPath = "notifications/internal/FIREBASE"

type (
	// API is the subset of the Secrets Manager client the loader uses.
	API interface {
		GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	}

	// Loader reads secret strings by name.
	Loader struct {
		api API
	}

	// FirebaseCredentials is the subset of a service account JSON the worker
	// needs beyond handing the raw document to the SDK.
	FirebaseCredentials struct {
		ProjectID string `json:"project_id"`
		// Raw is the full service account document as stored.
		Raw []byte `json:"-"`
	}
)

// NewLoader wraps a Secrets Manager client.
func NewLoader(api API) (*Loader, error) {
	if api == nil {
		return nil, errors.New("secrets manager api is required")
	}
	return &Loader{api: api}, nil
}

// SecretString fetches the string value of the named secret.
func (l *Loader) SecretString(ctx context.Context, name string) (string, error) {
	out, err := l.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}
	return *out.SecretString, nil
}

// FirebaseCredentials fetches and parses the Firebase service account secret.
func (l *Loader) FirebaseCredentials(ctx context.Context, name string) (*FirebaseCredentials, error) {
	raw, err := l.SecretString(ctx, name)
	if err != nil {
		return nil, err
	}
	creds, err := ParseFirebaseCredentials([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", name, err)
	}
	return creds, nil
}

// ParseFirebaseCredentials validates a service account document.
func ParseFirebaseCredentials(raw []byte) (*FirebaseCredentials, error) {
	var creds FirebaseCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, errors.New("service account missing project_id")
	}
	creds.Raw = raw
	return &creds, nil
}
