package eventstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreSeams(t *testing.T) {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newDynamoFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newDynamoFromConfig = origNew
	})
}

func TestConnect_RequiresTable(t *testing.T) {
	_, err := Connect(context.Background(), Config{Region: "eu-west-1"})
	require.ErrorIs(t, err, ErrNoTable)
}

func TestConnect_StaticCredentialsAndEndpoint(t *testing.T) {
	restoreSeams(t)

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}
	var gotOpts dynamodb.Options
	newDynamoFromConfig = func(cfg aws.Config, optFns ...func(*dynamodb.Options)) *dynamodb.Client {
		for _, fn := range optFns {
			fn(&gotOpts)
		}
		return &dynamodb.Client{}
	}

	c, err := Connect(context.Background(), Config{
		Region:          "ap-southeast-1",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		Table:           "ids",
		Endpoint:        "http://localhost:8000",
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "ap-southeast-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	require.NotNil(t, gotOpts.BaseEndpoint)
	assert.Equal(t, "http://localhost:8000", *gotOpts.BaseEndpoint)
}

func TestConnect_LoadConfigError(t *testing.T) {
	restoreSeams(t)

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err := Connect(context.Background(), Config{Table: "ids"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-fail")
}

type stubDescriber struct {
	table string
	err   error
}

func (s *stubDescriber) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	s.table = aws.ToString(in.TableName)
	return &dynamodb.DescribeTableOutput{}, s.err
}

func TestProbe(t *testing.T) {
	d := &stubDescriber{}
	require.NoError(t, Probe(context.Background(), d, Config{Table: "ids"}))
	assert.Equal(t, "ids", d.table)

	d.err = errors.New("ResourceNotFoundException")
	err := Probe(context.Background(), d, Config{Table: "ids"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe table ids")
}
