package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/entity"
)

// DynamoAPI is the subset of *dynamodb.Client the repo uses.
type DynamoAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

var (
	ErrNotFound        = errors.New("record not found")
	ErrConditionFailed = errors.New("conditional update rejected")
)

// AlertRepo reads and updates IDS records in a single DynamoDB table.
type AlertRepo struct {
	api   DynamoAPI
	table string
}

func NewAlertRepo(api DynamoAPI, table string) *AlertRepo {
	return &AlertRepo{api: api, table: table}
}

// ScanLogs scans the whole table, applying f as a filter expression.
func (r *AlertRepo) ScanLogs(ctx context.Context, f entity.LogFilter) ([]entity.Record, error) {
	var conds []expression.ConditionBuilder
	if f.SourceIP != "" {
		conds = append(conds, expression.Name("SrcIP").Contains(f.SourceIP))
	}
	if f.DestinationIP != "" {
		conds = append(conds, expression.Name("DstIP").Equal(expression.Value(f.DestinationIP)))
	}
	if f.Protocol != "" {
		conds = append(conds, expression.Name("ProtocolType").Equal(expression.Value(f.Protocol)))
	}
	return r.scan(ctx, conds)
}

// ScanAlerts returns records whose label is not "normal", or exactly label
// when one is given.
func (r *AlertRepo) ScanAlerts(ctx context.Context, label string) ([]entity.Record, error) {
	cond := expression.Name("Label").NotEqual(expression.Value(entity.LabelNormal))
	if label != "" {
		cond = expression.Name("Label").Equal(expression.Value(label))
	}
	return r.scan(ctx, []expression.ConditionBuilder{cond})
}

func (r *AlertRepo) scan(ctx context.Context, conds []expression.ConditionBuilder) ([]entity.Record, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(r.table)}
	if len(conds) > 0 {
		filter := conds[0]
		if len(conds) > 1 {
			filter = expression.And(conds[0], conds[1], conds[2:]...)
		}
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		in.FilterExpression = expr.Filter()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}

	out := []entity.Record{}
	p := dynamodb.NewScanPaginator(r.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var recs []entity.Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Get loads one record or returns ErrNotFound.
func (r *AlertRepo) Get(ctx context.Context, key entity.Key) (*entity.Record, error) {
	av, err := attributevalue.MarshalMap(key)
	if err != nil {
		return nil, err
	}
	res, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            av,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec entity.Record
	if err := attributevalue.UnmarshalMap(res.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// SetOwner assigns owner to an existing record. A missing record yields
// ErrNotFound rather than an upsert.
func (r *AlertRepo) SetOwner(ctx context.Context, key entity.Key, owner string) error {
	upd := expression.Set(expression.Name("Owner"), expression.Value(owner))
	err := r.update(ctx, key, upd, expression.AttributeExists(expression.Name("ConnectionID")))
	if errors.Is(err, ErrConditionFailed) {
		return ErrNotFound
	}
	return err
}

// SetStatus writes status and stamps LastUpdatedBy, but only while the
// record is still owned by actor. ErrConditionFailed means the item is gone
// or its owner changed.
func (r *AlertRepo) SetStatus(ctx context.Context, key entity.Key, status, actor string) error {
	upd := expression.
		Set(expression.Name("Status"), expression.Value(status)).
		Set(expression.Name("LastUpdatedBy"), expression.Value(actor))
	cond := expression.AttributeExists(expression.Name("ConnectionID")).
		And(expression.Name("Owner").Equal(expression.Value(actor)))
	return r.update(ctx, key, upd, cond)
}

func (r *AlertRepo) update(ctx context.Context, key entity.Key, upd expression.UpdateBuilder, cond expression.ConditionBuilder) error {
	av, err := attributevalue.MarshalMap(key)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().WithUpdate(upd).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	_, err = r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       av,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrConditionFailed
	}
	return err
}
