package store

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// New creates a Substrate based on the backend name.
//
// Supported backends:
//
//	"dynamo" - DynamoDB (default)
//	"sqlite" - SQLite database at cfg.Path
//	"memory" - In-memory (ephemeral, for testing)
func New(ctx context.Context, backend string, cfg Config) (Substrate, error) {
	switch backend {
	case "dynamo", "":
		awscfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewDynamo(dynamodb.NewFromConfig(awscfg), cfg), nil
	case "sqlite":
		return NewSQLite(cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: dynamo, sqlite, memory)", backend)
	}
}
