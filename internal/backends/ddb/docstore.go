package ddb

import (
	"context"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	json "github.com/goccy/go-json"

	"github.com/arvinsg/index-management/internal/backends/fieldmatch"
	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/types"
)

// DocStore implements ports.DocStore on a single DynamoDB table.
// The document tree is kept as a JSON blob; seq_no/primary_term live as item
// attributes so conditional expressions can compare them server-side.
// DynamoDB writes are immediately visible, so the refresh hint is a no-op here.
type DocStore struct {
	table string
	cli   *dynamodb.Client
}

type docItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Doc         string `dynamodbav:"doc"`
	SeqNo       int64  `dynamodbav:"seq_no"`
	PrimaryTerm int64  `dynamodbav:"primary_term"`
}

func NewDocStore(table string, cli *dynamodb.Client) *DocStore {
	// Creates the table only if it doesn't exist.
	createTableIfNotExists(cli, table)
	return &DocStore{table: table, cli: cli}
}

func (s *DocStore) Get(ctx context.Context, id string) (types.Tree, types.Version, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key:            docKey(id),
	})
	if err != nil {
		return nil, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	if out.Item == nil {
		return nil, types.UnassignedVersion(), types.ErrNotFound
	}
	var item docItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	var doc types.Tree
	if err := json.Unmarshal([]byte(item.Doc), &doc); err != nil {
		return nil, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "corrupt document %s", id)
	}
	return doc, types.Version{SeqNo: item.SeqNo, PrimaryTerm: item.PrimaryTerm}, nil
}

func (s *DocStore) CreateOnly(ctx context.Context, id string, doc types.Tree, refresh ports.RefreshPolicy) (types.Version, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	ver := types.Version{SeqNo: 1, PrimaryTerm: 1}
	av, _ := attributevalue.MarshalMap(docItem{
		PK:          pkDoc(id),
		SK:          skConfig,
		Doc:         string(blob),
		SeqNo:       ver.SeqNo,
		PrimaryTerm: ver.PrimaryTerm,
	})
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.table,
		Item:                av,
		ConditionExpression: awsString("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return types.UnassignedVersion(), types.ErrConflict
		}
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	return ver, nil
}

// UpdateIfVersion bumps seq_no under a `seq_no = :prev AND primary_term = :prevterm`
// condition. The failed-condition item tells a missing doc apart from a stale pair.
func (s *DocStore) UpdateIfVersion(ctx context.Context, id string, doc types.Tree, expected types.Version, refresh ports.RefreshPolicy) (types.Version, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	next := types.Version{SeqNo: expected.SeqNo + 1, PrimaryTerm: expected.PrimaryTerm}
	_, err = s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.table,
		Key:              docKey(id),
		UpdateExpression: awsString("SET #doc=:doc, #seq=:newseq"),
		ExpressionAttributeNames: map[string]string{
			"#doc":  "doc",
			"#seq":  "seq_no",
			"#term": "primary_term",
		},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":doc":      &ddbTypes.AttributeValueMemberS{Value: string(blob)},
			":newseq":   &ddbTypes.AttributeValueMemberN{Value: itoa(next.SeqNo)},
			":prev":     &ddbTypes.AttributeValueMemberN{Value: itoa(expected.SeqNo)},
			":prevterm": &ddbTypes.AttributeValueMemberN{Value: itoa(expected.PrimaryTerm)},
		},
		ConditionExpression:                 awsString("attribute_exists(PK) AND #seq = :prev AND #term = :prevterm"),
		ReturnValuesOnConditionCheckFailure: ddbTypes.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			if cc.Item == nil {
				return types.UnassignedVersion(), types.ErrNotFound
			}
			return types.UnassignedVersion(), types.ErrConflict
		}
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	return next, nil
}

func (s *DocStore) Delete(ctx context.Context, id string, refresh ports.RefreshPolicy) (types.Version, error) {
	out, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &s.table,
		Key:                 docKey(id),
		ConditionExpression: awsString("attribute_exists(PK)"),
		ReturnValues:        ddbTypes.ReturnValueAllOld,
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return types.UnassignedVersion(), types.ErrNotFound
		}
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	var item docItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	return types.Version{SeqNo: item.SeqNo, PrimaryTerm: item.PrimaryTerm}, nil
}

// SearchByField scans the DOC partition prefix and matches the field path
// client-side. Config documents number in the hundreds at most, so a filtered
// scan beats maintaining a GSI per searchable path.
func (s *DocStore) SearchByField(ctx context.Context, fieldPath, value, excludeID string) ([]string, error) {
	var ids []string
	var startKey map[string]ddbTypes.AttributeValue
	for {
		out, err := s.cli.Scan(ctx, &dynamodb.ScanInput{
			TableName:        &s.table,
			FilterExpression: awsString("begins_with(PK, :prefix)"),
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":prefix": &ddbTypes.AttributeValueMemberS{Value: SDoc + "#"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, types.Err(types.ErrStoreUnavailable, err, "")
		}
		for _, raw := range out.Items {
			var item docItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, types.Err(types.ErrStoreUnavailable, err, "")
			}
			id, ok := parseDocID(item.PK)
			if !ok || id == excludeID {
				continue
			}
			var doc types.Tree
			if err := json.Unmarshal([]byte(item.Doc), &doc); err != nil {
				return nil, types.Err(types.ErrStoreUnavailable, err, "corrupt document %s", id)
			}
			if fieldmatch.Match(doc, fieldPath, value) {
				ids = append(ids, id)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Strings(ids)
	return ids, nil
}

func docKey(id string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkDoc(id)},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skConfig},
	}
}

func itoa(i int64) string { return strconv.FormatInt(i, 10) }
