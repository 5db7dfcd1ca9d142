// Package awsint syncs an AWS account reached through an external-ID
// assume role: IAM users as service accounts and EC2 instances as
// devices.
package awsint

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
)

const assumeRoleAttempts = 3

// STSAPI is the slice of the STS client the adapter uses.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// IAMAPI is the slice of the IAM client the adapter uses.
type IAMAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
}

// EC2API is the slice of the EC2 client the adapter uses.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// ClientFactory builds data-plane clients from the assumed-role
// credentials. Swapped in tests.
type ClientFactory func(creds aws.Credentials, region string) (IAMAPI, EC2API)

type Adapter struct {
	accounts   models.ConnectionAccountRepository
	sts        STSAPI
	newClients ClientFactory
	region     string
	sessionTag string
	retryBase  time.Duration
	logger     *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, stsClient STSAPI, region string, logger *zap.Logger) *Adapter {
	return &Adapter{
		accounts:   accounts,
		sts:        stsClient,
		newClients: defaultClientFactory,
		region:     region,
		sessionTag: "laika-sync",
		retryBase:  2 * time.Second,
		logger:     logger,
	}
}

// WithClientFactory overrides how data-plane clients are built.
func (a *Adapter) WithClientFactory(f ClientFactory) *Adapter {
	a.newClients = f
	return a
}

// WithRetryBase shortens the assume-role retry delay in tests.
func (a *Adapter) WithRetryBase(d time.Duration) *Adapter {
	a.retryBase = d
	return a
}

func defaultClientFactory(creds aws.Credentials, region string) (IAMAPI, EC2API) {
	cfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
	}
	return iam.NewFromConfig(cfg), ec2.NewFromConfig(cfg)
}

func (a *Adapter) Vendor() string { return alerts.VendorAWS }

func (a *Adapter) Metadata() models.Metadata {
	return models.Metadata{
		Search:              models.SearchV1,
		ConfigurationFields: []string{"roleArn", "externalId"},
	}
}

func (a *Adapter) Connect(ctx context.Context, account *models.ConnectionAccount) error {
	if err := integration.RaiseIfDuplicate(ctx, a.accounts, account, roleIdentity); err != nil {
		return err
	}
	_, err := a.assumeRole(ctx, account)
	return err
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	if err := integration.RaiseIfDuplicate(ctx, a.accounts, rc.Account, roleIdentity); err != nil {
		return err
	}

	creds, err := a.assumeRole(ctx, rc.Account)
	if err != nil {
		return err
	}

	iamClient, ec2Client := a.newClients(creds, a.region)

	if err := a.syncServiceAccounts(ctx, rc, iamClient); err != nil {
		return err
	}
	if err := a.syncDevices(ctx, rc, ec2Client); err != nil {
		return err
	}

	return integration.WriteAccountSummary(ctx, rc)
}

// assumeRole exchanges the customer role for temporary credentials. STS
// can transiently reject a freshly created trust policy, so the call is
// retried a bounded number of times before the role is declared invalid.
func (a *Adapter) assumeRole(ctx context.Context, account *models.ConnectionAccount) (aws.Credentials, error) {
	roleArn := roleIdentity(account)
	if roleArn == "" {
		return aws.Credentials{}, integration.NewConfigError("aws connection is missing a role arn")
	}
	externalID, _ := account.Configuration.Settings["externalId"].(string)

	var lastErr error
	for attempt := 0; attempt < assumeRoleAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return aws.Credentials{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * a.retryBase):
			}
		}

		input := &sts.AssumeRoleInput{
			RoleArn:         aws.String(roleArn),
			RoleSessionName: aws.String(a.sessionTag),
		}
		if externalID != "" {
			input.ExternalId = aws.String(externalID)
		}

		out, err := a.sts.AssumeRole(ctx, input)
		if err != nil {
			lastErr = err
			continue
		}

		return aws.Credentials{
			AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
			SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
			SessionToken:    aws.ToString(out.Credentials.SessionToken),
		}, nil
	}

	return aws.Credentials{}, integration.NewCodedError(alerts.CodeInvalidAWSRole,
		fmt.Sprintf("assume role %s: %v", roleArn, lastErr))
}

func (a *Adapter) syncServiceAccounts(ctx context.Context, rc *integration.RunContext, client IAMAPI) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.ServiceAccount)
	if err != nil {
		return err
	}

	var records []map[string]any
	var marker *string
	for {
		out, err := client.ListUsers(ctx, &iam.ListUsersInput{Marker: marker})
		if err != nil {
			return fmt.Errorf("list iam users: %w", err)
		}

		for _, u := range out.Users {
			records = append(records, iamUserRecord(u))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	seen, err := rc.Run.Upsert(ctx, objectType, serviceAccountMapper(), records)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.ServiceAccount.TypeName, len(seen))
	return nil
}

func (a *Adapter) syncDevices(ctx context.Context, rc *integration.RunContext, client EC2API) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.Device)
	if err != nil {
		return err
	}

	var records []map[string]any
	var nextToken *string
	for {
		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				records = append(records, instanceRecord(instance))
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	seen, err := rc.Run.Upsert(ctx, objectType, deviceMapper(), records)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.Device.TypeName, len(seen))
	return nil
}

func roleIdentity(account *models.ConnectionAccount) string {
	arn, _ := account.Configuration.Settings["roleArn"].(string)
	return arn
}
