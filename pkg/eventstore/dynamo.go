// Package eventstore builds the DynamoDB client that backs the IDS
// log/alert table.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Table           string
	// Endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
	Endpoint string
	Timeout  time.Duration
}

// ConfigFromEnv reads the AWS_* variables.
func ConfigFromEnv() Config {
	return Config{
		Region:          os.Getenv("AWS_REGION"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Table:           os.Getenv("AWS_DYNAMODB_TABLE_NAME"),
		Endpoint:        os.Getenv("AWS_DYNAMODB_ENDPOINT"),
		Timeout:         5 * time.Second,
	}
}

var ErrNoTable = errors.New("eventstore: AWS_DYNAMODB_TABLE_NAME is not set")

// seams for tests
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig
	newDynamoFromConfig  = dynamodb.NewFromConfig
)

// Connect builds a DynamoDB client. Static credentials are used when both
// key fields are present, otherwise the default AWS credential chain applies.
func Connect(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	if cfg.Table == "" {
		return nil, ErrNoTable
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := newDynamoFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return client, nil
}

// Describer is the subset of the DynamoDB API used by Probe.
type Describer interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Probe confirms the configured table exists and is reachable.
func Probe(ctx context.Context, api Describer, cfg Config) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.Table)}); err != nil {
		return fmt.Errorf("describe table %s: %w", cfg.Table, err)
	}
	return nil
}
