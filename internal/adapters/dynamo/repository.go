package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrDuplicateDonation = errors.New("donation id already stored")

// donationItem is the table layout. Times are unix milliseconds so filter
// expressions can compare them numerically.
type donationItem struct {
	ID                    string  `dynamodbav:"id"`
	ProviderRefKey        string  `dynamodbav:"provider_ref_key"`
	DonorName             string  `dynamodbav:"donor_name"`
	DonorEmail            string  `dynamodbav:"donor_email"`
	DonorPhone            string  `dynamodbav:"donor_phone"`
	Amount                string  `dynamodbav:"amount"`
	Currency              string  `dynamodbav:"currency"`
	Recurrence            string  `dynamodbav:"recurrence"`
	Provider              string  `dynamodbav:"provider"`
	ProviderReference     string  `dynamodbav:"provider_reference"`
	PaymentStatus         string  `dynamodbav:"payment_status"`
	PaymentIdentifier     *string `dynamodbav:"payment_identifier,omitempty"`
	SubscriptionReference *string `dynamodbav:"subscription_reference,omitempty"`
	ReceiptNumber         *string `dynamodbav:"receipt_number,omitempty"`
	CreatedAt             int64   `dynamodbav:"created_at"`
	UpdatedAt             int64   `dynamodbav:"updated_at"`
	CompletedAt           *int64  `dynamodbav:"completed_at,omitempty"`
	NotifiedAt            *int64  `dynamodbav:"notified_at,omitempty"`
}

func refKey(provider domain.ProviderID, reference string) string {
	return string(provider) + "#" + reference
}

func toItem(d *domain.Donation) donationItem {
	return donationItem{
		ID:                    d.ID.String(),
		ProviderRefKey:        refKey(d.Provider, d.ProviderReference),
		DonorName:             d.Donor.Name,
		DonorEmail:            d.Donor.Email,
		DonorPhone:            d.Donor.Phone,
		Amount:                d.Amount.Amount.StringFixed(d.Amount.Currency.Exponent()),
		Currency:              string(d.Amount.Currency),
		Recurrence:            string(d.Recurrence),
		Provider:              string(d.Provider),
		ProviderReference:     d.ProviderReference,
		PaymentStatus:         string(d.Status),
		PaymentIdentifier:     d.PaymentIdentifier,
		SubscriptionReference: d.SubscriptionReference,
		ReceiptNumber:         d.ReceiptNumber,
		CreatedAt:             d.CreatedAt.UnixMilli(),
		UpdatedAt:             d.UpdatedAt.UnixMilli(),
		CompletedAt:           millisPtr(d.CompletedAt),
		NotifiedAt:            millisPtr(d.NotifiedAt),
	}
}

func (it donationItem) toDomain() (*domain.Donation, error) {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return nil, fmt.Errorf("donation item has malformed id %q: %w", it.ID, err)
	}
	amount, err := decimal.NewFromString(it.Amount)
	if err != nil {
		return nil, fmt.Errorf("donation %s has unreadable amount %q: %w", it.ID, it.Amount, err)
	}
	return &domain.Donation{
		ID:                    id,
		Donor:                 domain.Donor{Name: it.DonorName, Email: it.DonorEmail, Phone: it.DonorPhone},
		Amount:                domain.Money{Amount: amount, Currency: domain.Currency(it.Currency)},
		Recurrence:            domain.Recurrence(it.Recurrence),
		Provider:              domain.ProviderID(it.Provider),
		ProviderReference:     it.ProviderReference,
		Status:                domain.PaymentStatus(it.PaymentStatus),
		PaymentIdentifier:     it.PaymentIdentifier,
		SubscriptionReference: it.SubscriptionReference,
		ReceiptNumber:         it.ReceiptNumber,
		CreatedAt:             time.UnixMilli(it.CreatedAt).UTC(),
		UpdatedAt:             time.UnixMilli(it.UpdatedAt).UTC(),
		CompletedAt:           timePtr(it.CompletedAt),
		NotifiedAt:            timePtr(it.NotifiedAt),
	}, nil
}

type DonationRepository struct {
	client API
	table  string
}

var _ ports.DonationRepository = (*DonationRepository)(nil)

func NewDonationRepository(client API, table string) *DonationRepository {
	return &DonationRepository{client: client, table: table}
}

func (r *DonationRepository) key(id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id.String()},
	}
}

func (r *DonationRepository) CreateDonation(ctx context.Context, d *domain.Donation) error {
	av, err := attributevalue.MarshalMap(toItem(d))
	if err != nil {
		return fmt.Errorf("marshal donation %s: %w", d.ID, err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("create donation %s: %w", d.ID, ErrDuplicateDonation)
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

func (r *DonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get donation %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, domain.NewDonationNotFoundError(id.String())
	}

	var it donationItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal donation %s: %w", id, err)
	}
	return it.toDomain()
}

// FindByProviderReference resolves the id through the index, then re-reads
// the item consistently since index reads may lag.
func (r *DonationRepository) FindByProviderReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(referenceIndex),
		KeyConditionExpression: aws.String("provider_ref_key = :k"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: refKey(provider, reference)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query donation by reference: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrNotFound
	}

	idAttr, ok := out.Items[0]["id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("reference index item has no id")
	}
	id, err := uuid.Parse(idAttr.Value)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// TransitionStatus relies on a ConditionExpression so only one writer can
// move a donation out of pending.
func (r *DonationRepository) TransitionStatus(ctx context.Context, t domain.Transition) (bool, error) {
	sets := []string{"payment_status = :to", "updated_at = :at"}
	values := map[string]types.AttributeValue{
		":to":      &types.AttributeValueMemberS{Value: string(t.To)},
		":at":      &types.AttributeValueMemberN{Value: fmt.Sprint(t.At.UnixMilli())},
		":pending": &types.AttributeValueMemberS{Value: string(domain.StatusPending)},
		":ref":     &types.AttributeValueMemberS{Value: t.Reference},
	}
	if t.To == domain.StatusCompleted {
		sets = append(sets, "completed_at = :at")
	}
	if t.PaymentIdentifier != nil {
		sets = append(sets, "payment_identifier = :pid")
		values[":pid"] = &types.AttributeValueMemberS{Value: *t.PaymentIdentifier}
	}
	if t.SubscriptionReference != nil {
		sets = append(sets, "subscription_reference = :sub")
		values[":sub"] = &types.AttributeValueMemberS{Value: *t.SubscriptionReference}
	}
	if t.ReceiptNumber != nil {
		sets = append(sets, "receipt_number = :rcpt")
		values[":rcpt"] = &types.AttributeValueMemberS{Value: *t.ReceiptNumber}
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       r.key(t.DonationID),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("payment_status = :pending AND provider_reference = :ref"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to transition donation %s: %w", t.DonationID, err)
	}
	return true, nil
}

func (r *DonationRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 r.key(id),
		UpdateExpression:    aws.String("SET notified_at = :at"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(notified_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberN{Value: fmt.Sprint(at.UnixMilli())},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			_, findErr := r.FindByID(ctx, id)
			return findErr
		}
		return fmt.Errorf("failed to mark donation %s notified: %w", id, err)
	}
	return nil
}

func (r *DonationRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Donation, error) {
	return r.scan(ctx, "payment_status = :pending AND created_at < :before", map[string]types.AttributeValue{
		":pending": &types.AttributeValueMemberS{Value: string(domain.StatusPending)},
		":before":  &types.AttributeValueMemberN{Value: fmt.Sprint(createdBefore.UnixMilli())},
	}, limit)
}

func (r *DonationRepository) FindUnnotified(ctx context.Context, limit int) ([]*domain.Donation, error) {
	return r.scan(ctx, "payment_status = :completed AND attribute_not_exists(notified_at)", map[string]types.AttributeValue{
		":completed": &types.AttributeValueMemberS{Value: string(domain.StatusCompleted)},
	}, limit)
}

func (r *DonationRepository) scan(ctx context.Context, filter string, values map[string]types.AttributeValue, limit int) ([]*domain.Donation, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	})

	var out []*domain.Donation
	for paginator.HasMorePages() && len(out) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan donations: %w", err)
		}
		var items []donationItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal donations: %w", err)
		}
		for _, it := range items {
			if len(out) >= limit {
				break
			}
			d, err := it.toDomain()
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func timePtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
