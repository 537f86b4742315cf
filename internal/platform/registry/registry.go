// Package registry publishes issued certificates to a DynamoDB table so that
// third parties can verify a certificate by its document id without access
// to the clinical database.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/occhealth/occhealth/internal/platform/apperr"
)

// Record is the public projection of a certificate. It carries no clinical
// findings, only the verdict and its validity.
type Record struct {
	DocumentID      string    `dynamodbav:"document_id" json:"document_id"`
	AdmissionID     string    `dynamodbav:"admission_id" json:"admission_id"`
	PatientDocument string    `dynamodbav:"patient_document" json:"patient_document"`
	PatientName     string    `dynamodbav:"patient_name" json:"patient_name"`
	CompanyName     string    `dynamodbav:"company_name" json:"company_name"`
	Verdict         string    `dynamodbav:"verdict" json:"verdict"`
	Restrictions    string    `dynamodbav:"restrictions,omitempty" json:"restrictions,omitempty"`
	Status          string    `dynamodbav:"status" json:"status"`
	IssuedAt        time.Time `dynamodbav:"issued_at" json:"issued_at"`
	ExpiresAt       time.Time `dynamodbav:"expires_at" json:"expires_at"`
	SupersededBy    string    `dynamodbav:"superseded_by,omitempty" json:"superseded_by,omitempty"`
}

// api is the subset of the DynamoDB client used here.
type api interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Registry stores Records keyed by document_id.
//
// Table requirements:
//   - PK: document_id (string)
type Registry struct {
	ddb   api
	table string
}

func New(client api, table string) *Registry {
	return &Registry{ddb: client, table: table}
}

// Options configure the DynamoDB client.
type Options struct {
	Table    string
	Region   string
	Endpoint string // e.g. http://localhost:8000 for DynamoDB Local
}

// Connect builds a Registry from the default AWS credential chain. With an
// explicit endpoint, static local credentials are used since DynamoDB Local
// does not validate them.
func Connect(ctx context.Context, opts Options) (*Registry, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return New(client, opts.Table), nil
}

// Put writes or replaces the record for its document id.
func (r *Registry) Put(ctx context.Context, rec Record) error {
	if rec.DocumentID == "" {
		return apperr.Validation("registry record requires a document id")
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal registry record: %w", err)
	}
	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put registry record %s: %w", rec.DocumentID, err)
	}
	return nil
}

// Get returns the record for documentID or an apperr not-found error.
func (r *Registry) Get(ctx context.Context, documentID string) (*Record, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"document_id": &types.AttributeValueMemberS{Value: documentID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get registry record %s: %w", documentID, err)
	}
	if len(out.Item) == 0 {
		return nil, apperr.NotFound("certificate %s is not registered", documentID)
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal registry record: %w", err)
	}
	return &rec, nil
}
