package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/models"
	"github.com/tidwall/gjson"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

type awsBackend struct {
	client SecretsManagerAPI
}

func NewAWSBackend(ctx context.Context, awsConfig models.AWSSecretsConfig) (Backend, error) {

	sdkConfig, err := CreateAwsConfig(ctx, awsConfig)
	if err != nil {
		return nil, err
	}

	client := secretsmanager.NewFromConfig(sdkConfig, func(o *secretsmanager.Options) {
		if len(awsConfig.Endpoint) > 0 {
			o.BaseEndpoint = aws.String(awsConfig.Endpoint)
		}
	})

	return NewAWSBackendFromClient(client), nil
}

func NewAWSBackendFromClient(client SecretsManagerAPI) Backend {
	return &awsBackend{client: client}
}

// CreateAwsConfig prefers a shared profile, then static keys, then the
// default credential chain.
func CreateAwsConfig(ctx context.Context, awsConfig models.AWSSecretsConfig) (aws.Config, error) {

	awsOptions := []func(*config.LoadOptions) error{}

	if len(awsConfig.Profile) > 0 {
		logrus.Info("Using shared AWS config profile")
		awsOptions = append(awsOptions, config.WithSharedConfigProfile(awsConfig.Profile))
	} else if len(awsConfig.AccessKeyID) > 0 && len(awsConfig.SecretAccessKey) > 0 {
		logrus.Info("Using static AWS credentials")
		awsOptions = append(awsOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsConfig.AccessKeyID, awsConfig.SecretAccessKey, ""),
		))
	} else {
		logrus.Debug("No AWS credentials provided, using IAM role or default profile")
	}

	region := awsConfig.Region
	if len(region) == 0 {
		region = "us-east-1"
	}

	awsOptions = append(awsOptions, config.WithRegion(region))

	if awsConfig.IMDSDisable {
		awsOptions = append(awsOptions, config.WithEC2IMDSClientEnableState(imds.ClientDisabled))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sdkConfig, nil
}

// Lookup returns the whole secret string when field is empty. Otherwise the
// secret must be JSON and field is a gjson path into it.
func (a *awsBackend) Lookup(ctx context.Context, secretID, field string) (string, error) {

	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})

	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretID, err)
	}

	if out == nil || out.SecretString == nil {
		return "", fmt.Errorf("%w: secret %s has no string value", ErrSecretNotFound, secretID)
	}

	secretString := aws.ToString(out.SecretString)

	if len(field) == 0 {
		return secretString, nil
	}

	if !gjson.Valid(secretString) {
		return "", fmt.Errorf("secret %s is not JSON, cannot select field %s", secretID, field)
	}

	result := gjson.Get(secretString, field)
	if !result.Exists() {
		return "", fmt.Errorf("%w: field %s in secret %s", ErrSecretNotFound, field, secretID)
	}

	return result.String(), nil
}
