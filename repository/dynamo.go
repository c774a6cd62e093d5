package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
)

// DynamoDB caps a single TransactWriteItems call at 100 actions.
const maxTransactItems = 100

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps products and orders in two DynamoDB tables keyed by
// product_id and order_id. Transactions read with ConsistentRead and commit
// through TransactWriteItems, every product write conditioned on the stock
// value the transaction saw.
type DynamoStore struct {
	client        DynamoAPI
	productsTable string
	ordersTable   string
}

func NewDynamoStore(client DynamoAPI, productsTable, ordersTable string) *DynamoStore {
	return &DynamoStore{client: client, productsTable: productsTable, ordersTable: ordersTable}
}

func (s *DynamoStore) Products() ProductRepository { return dynamoProducts{s} }
func (s *DynamoStore) Orders() OrderRepository     { return dynamoOrders{s} }
func (s *DynamoStore) Close(context.Context) error { return nil }

func (s *DynamoStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &dynamoTx{
		store:  s,
		reads:  make(map[string]int),
		writes: make(map[string]stockWrite),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

type dynamoTx struct {
	store  *DynamoStore
	reads  map[string]int
	writes map[string]stockWrite
	orders []models.Order
}

func (tx *dynamoTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := tx.store.getProduct(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if _, seen := tx.reads[id]; !seen {
		tx.reads[id] = p.Stock
	}
	if w, written := tx.writes[id]; written {
		p.Stock = w.stock
		p.UpdatedAt = w.updatedAt
	}
	return p, nil
}

func (tx *dynamoTx) SetProductStock(ctx context.Context, id string, stock int, updatedAt time.Time) error {
	if stock < 0 {
		return fmt.Errorf("set stock for %s: negative stock %d", id, stock)
	}
	if _, seen := tx.reads[id]; !seen {
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return err
		}
	}
	tx.writes[id] = stockWrite{stock: stock, updatedAt: updatedAt}
	return nil
}

func (tx *dynamoTx) InsertOrder(_ context.Context, order *models.Order) error {
	tx.orders = append(tx.orders, *order)
	return nil
}

func (tx *dynamoTx) commit(ctx context.Context) error {
	items, err := tx.transactItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxTransactItems {
		return fmt.Errorf("transaction touches %d items, limit is %d", len(items), maxTransactItems)
	}

	_, err = tx.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return classifyDynamoError(err)
}

func (tx *dynamoTx) transactItems() ([]types.TransactWriteItem, error) {
	ids := make([]string, 0, len(tx.reads))
	for id := range tx.reads {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]types.TransactWriteItem, 0, len(ids)+len(tx.orders))
	for _, id := range ids {
		key := productKey(id)
		expected := &types.AttributeValueMemberN{Value: fmt.Sprint(tx.reads[id])}
		cond := "#stock = :expected"
		names := map[string]string{"#stock": "stock"}

		w, written := tx.writes[id]
		if !written {
			items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
				TableName:                 aws.String(tx.store.productsTable),
				Key:                       key,
				ConditionExpression:       aws.String(cond),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: map[string]types.AttributeValue{":expected": expected},
			}})
			continue
		}

		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                aws.String(tx.store.productsTable),
			Key:                      key,
			UpdateExpression:         aws.String("SET #stock = :stock, updated_at = :now"),
			ConditionExpression:      aws.String(cond),
			ExpressionAttributeNames: names,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expected": expected,
				":stock":    &types.AttributeValueMemberN{Value: fmt.Sprint(w.stock)},
				":now":      &types.AttributeValueMemberS{Value: formatTime(w.updatedAt)},
			},
		}})
	}

	for i := range tx.orders {
		item, err := attributevalue.MarshalMap(toDDBOrder(&tx.orders[i]))
		if err != nil {
			return nil, fmt.Errorf("marshal order: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(tx.store.ordersTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(order_id)"),
		}})
	}
	return items, nil
}

// classifyDynamoError maps cancelled transactions and throttling onto
// ErrConflict so the caller can retry the whole unit.
func classifyDynamoError(err error) error {
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			switch aws.ToString(reason.Code) {
			case "ConditionalCheckFailed", "TransactionConflict", "ThrottlingError", "ProvisionedThroughputExceeded":
				return fmt.Errorf("%w: %v", ErrConflict, err)
			}
		}
		return fmt.Errorf("transaction cancelled: %w", err)
	}
	var inProgress *types.TransactionInProgressException
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &inProgress) || errors.As(err, &throughput) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return fmt.Errorf("transact write failed: %w", err)
}

func (s *DynamoStore) getProduct(ctx context.Context, id string, consistent bool) (*models.Product, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.productsTable),
		Key:            productKey(id),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dp ddbProduct
	if err := attributevalue.UnmarshalMap(out.Item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return dp.toModel()
}

func (s *DynamoStore) scan(ctx context.Context, in *dynamodb.ScanInput, visit func(map[string]types.AttributeValue) error) error {
	p := dynamodb.NewScanPaginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("dynamodb Scan failed: %w", err)
		}
		for _, item := range page.Items {
			if err := visit(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"product_id": &types.AttributeValueMemberS{Value: id}}
}

func orderKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: id}}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

type dynamoProducts struct{ s *DynamoStore }

func (r dynamoProducts) FindByID(ctx context.Context, id string) (*models.Product, error) {
	return r.s.getProduct(ctx, id, false)
}

func (r dynamoProducts) FindAll(ctx context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0)
	err := r.s.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.s.productsTable)}, func(item map[string]types.AttributeValue) error {
		var dp ddbProduct
		if err := attributevalue.UnmarshalMap(item, &dp); err != nil {
			return fmt.Errorf("unmarshal item: %w", err)
		}
		p, err := dp.toModel()
		if err != nil {
			return err
		}
		out = append(out, *p)
		return nil
	})
	return out, err
}

func (r dynamoProducts) put(ctx context.Context, product *models.Product, cond string) error {
	item, err := attributevalue.MarshalMap(toDDBProduct(product))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = r.s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.s.productsTable),
		Item:                item,
		ConditionExpression: aws.String(cond),
	})
	return err
}

func (r dynamoProducts) Create(ctx context.Context, product *models.Product) error {
	if err := r.put(ctx, product, "attribute_not_exists(product_id)"); err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("product %s already exists", product.ID)
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r dynamoProducts) Update(ctx context.Context, product *models.Product) error {
	if err := r.put(ctx, product, "attribute_exists(product_id)"); err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r dynamoProducts) Delete(ctx context.Context, id string) error {
	_, err := r.s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.s.productsTable),
		Key:                 productKey(id),
		ConditionExpression: aws.String("attribute_exists(product_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("dynamodb DeleteItem failed: %w", err)
	}
	return nil
}

type dynamoOrders struct{ s *DynamoStore }

func (r dynamoOrders) FindByID(ctx context.Context, id string) (*models.Order, error) {
	out, err := r.s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.s.ordersTable),
		Key:       orderKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var do ddbOrder
	if err := attributevalue.UnmarshalMap(out.Item, &do); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return do.toModel()
}

func (r dynamoOrders) FindAll(ctx context.Context) ([]models.Order, error) {
	return r.scanOrders(ctx, &dynamodb.ScanInput{TableName: aws.String(r.s.ordersTable)})
}

func (r dynamoOrders) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	return r.scanOrders(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(r.s.ordersTable),
		FilterExpression:          aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}},
	})
}

func (r dynamoOrders) FindByStatuses(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	if len(statuses) == 0 {
		return []models.Order{}, nil
	}
	placeholders := make([]string, 0, len(statuses))
	values := make(map[string]types.AttributeValue, len(statuses))
	for i, st := range statuses {
		ph := fmt.Sprintf(":s%d", i)
		placeholders = append(placeholders, ph)
		values[ph] = &types.AttributeValueMemberS{Value: string(st)}
	}
	return r.scanOrders(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(r.s.ordersTable),
		FilterExpression:          aws.String(fmt.Sprintf("#status IN (%s)", strings.Join(placeholders, ", "))),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
}

func (r dynamoOrders) scanOrders(ctx context.Context, in *dynamodb.ScanInput) ([]models.Order, error) {
	out := make([]models.Order, 0)
	err := r.s.scan(ctx, in, func(item map[string]types.AttributeValue) error {
		var do ddbOrder
		if err := attributevalue.UnmarshalMap(item, &do); err != nil {
			return fmt.Errorf("unmarshal item: %w", err)
		}
		o, err := do.toModel()
		if err != nil {
			return err
		}
		out = append(out, *o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (r dynamoOrders) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error {
	_, err := r.s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.s.ordersTable),
		Key:                 orderKey(id),
		UpdateExpression:    aws.String("SET #status = :to, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(order_id) AND #status = :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":now":  &types.AttributeValueMemberS{Value: formatTime(updatedAt)},
		},
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		// the old item tells a missing order apart from a changed status
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return fmt.Errorf("update order %s status: %w", id, err)
}

func (r dynamoOrders) MarkReminderSent(ctx context.Context, id string, status models.OrderStatus, sentAt time.Time) error {
	now := &types.AttributeValueMemberS{Value: formatTime(sentAt)}
	return r.update(ctx, id,
		"SET follow_up_reminder_sent_at = :sent, follow_up_reminder_status = :status, updated_at = :sent",
		map[string]types.AttributeValue{
			":sent":   now,
			":status": &types.AttributeValueMemberS{Value: string(status)},
		}, nil)
}

func (r dynamoOrders) update(ctx context.Context, id, expr string, values map[string]types.AttributeValue, names map[string]string) error {
	_, err := r.s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.s.ordersTable),
		Key:                       orderKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(order_id)"),
		ExpressionAttributeValues: values,
		ExpressionAttributeNames:  names,
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type ddbProduct struct {
	ProductID     string         `dynamodbav:"product_id"`
	Title         string         `dynamodbav:"title"`
	Slug          string         `dynamodbav:"slug"`
	Category      string         `dynamodbav:"category"`
	Brand         string         `dynamodbav:"brand"`
	Description   string         `dynamodbav:"description,omitempty"`
	Price         string         `dynamodbav:"price"`
	DiscountPrice *string        `dynamodbav:"discount_price,omitempty"`
	Image         string         `dynamodbav:"image,omitempty"`
	Images        []string       `dynamodbav:"images,omitempty"`
	Specs         map[string]any `dynamodbav:"specs,omitempty"`
	Stock         int            `dynamodbav:"stock"`
	Rating        float64        `dynamodbav:"rating"`
	ReviewCount   int            `dynamodbav:"review_count"`
	IsFeatured    bool           `dynamodbav:"is_featured"`
	FreeDelivery  bool           `dynamodbav:"free_delivery"`
	CreatedAt     string         `dynamodbav:"created_at"`
	UpdatedAt     string         `dynamodbav:"updated_at"`
}

type ddbLineItem struct {
	ProductID string `dynamodbav:"product_id"`
	Title     string `dynamodbav:"title"`
	Image     string `dynamodbav:"image,omitempty"`
	Price     string `dynamodbav:"price"`
	Quantity  int    `dynamodbav:"quantity"`
}

type ddbAddress struct {
	Name     string `dynamodbav:"name"`
	Phone    string `dynamodbav:"phone"`
	Street   string `dynamodbav:"street"`
	City     string `dynamodbav:"city"`
	State    string `dynamodbav:"state,omitempty"`
	Pincode  string `dynamodbav:"pincode"`
	Landmark string `dynamodbav:"landmark,omitempty"`
}

type ddbOrder struct {
	OrderID                string        `dynamodbav:"order_id"`
	UserID                 string        `dynamodbav:"user_id"`
	UserEmail              string        `dynamodbav:"user_email,omitempty"`
	Items                  []ddbLineItem `dynamodbav:"items"`
	TotalAmount            string        `dynamodbav:"total_amount"`
	Status                 string        `dynamodbav:"status"`
	PaymentMethod          string        `dynamodbav:"payment_method"`
	PaymentStatus          string        `dynamodbav:"payment_status"`
	PaymentID              string        `dynamodbav:"payment_id,omitempty"`
	ShippingAddress        ddbAddress    `dynamodbav:"shipping_address"`
	OrderedAt              string        `dynamodbav:"ordered_at"`
	UpdatedAt              string        `dynamodbav:"updated_at"`
	FollowUpReminderSentAt *string       `dynamodbav:"follow_up_reminder_sent_at,omitempty"`
	FollowUpReminderStatus string        `dynamodbav:"follow_up_reminder_status,omitempty"`
}

func toDDBProduct(p *models.Product) ddbProduct {
	dp := ddbProduct{
		ProductID: p.ID, Title: p.Title, Slug: p.Slug, Category: p.Category, Brand: p.Brand,
		Description: p.Description, Price: p.Price.String(), Image: p.Image, Images: p.Images,
		Specs: p.Specs, Stock: p.Stock, Rating: p.Rating, ReviewCount: p.ReviewCount,
		IsFeatured: p.IsFeatured, FreeDelivery: p.FreeDelivery,
		CreatedAt: formatTime(p.CreatedAt), UpdatedAt: formatTime(p.UpdatedAt),
	}
	if p.DiscountPrice != nil {
		dp.DiscountPrice = aws.String(p.DiscountPrice.String())
	}
	return dp
}

func (dp *ddbProduct) toModel() (*models.Product, error) {
	price, err := decimal.NewFromString(dp.Price)
	if err != nil {
		return nil, fmt.Errorf("product %s price %q: %w", dp.ProductID, dp.Price, err)
	}
	p := &models.Product{
		ID: dp.ProductID, Title: dp.Title, Slug: dp.Slug, Category: dp.Category, Brand: dp.Brand,
		Description: dp.Description, Price: price, Image: dp.Image, Images: dp.Images, Specs: dp.Specs,
		Stock: dp.Stock, Rating: dp.Rating, ReviewCount: dp.ReviewCount, IsFeatured: dp.IsFeatured,
		FreeDelivery: dp.FreeDelivery, CreatedAt: parseTime(dp.CreatedAt), UpdatedAt: parseTime(dp.UpdatedAt),
	}
	if dp.DiscountPrice != nil {
		d, err := decimal.NewFromString(*dp.DiscountPrice)
		if err != nil {
			return nil, fmt.Errorf("product %s discount price: %w", dp.ProductID, err)
		}
		p.DiscountPrice = &d
	}
	return p, nil
}

func toDDBOrder(o *models.Order) ddbOrder {
	items := make([]ddbLineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ddbLineItem{
			ProductID: it.ProductID, Title: it.Title, Image: it.Image, Price: it.UnitPrice.String(), Quantity: it.Quantity,
		})
	}
	a := o.ShippingAddress
	do := ddbOrder{
		OrderID:       o.ID,
		UserID:        o.UserID,
		UserEmail:     o.UserEmail,
		Items:         items,
		TotalAmount:   o.TotalAmount.String(),
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		PaymentID:     o.PaymentID,
		ShippingAddress: ddbAddress{
			Name: a.Name, Phone: a.Phone, Street: a.Street, City: a.City,
			State: a.State, Pincode: a.Pincode, Landmark: a.Landmark,
		},
		OrderedAt:              formatTime(o.OrderedAt),
		UpdatedAt:              formatTime(o.UpdatedAt),
		FollowUpReminderStatus: string(o.FollowUpReminderStatus),
	}
	if o.FollowUpReminderSentAt != nil {
		do.FollowUpReminderSentAt = aws.String(formatTime(*o.FollowUpReminderSentAt))
	}
	return do
}

func (do *ddbOrder) toModel() (*models.Order, error) {
	total, err := decimal.NewFromString(do.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s total %q: %w", do.OrderID, do.TotalAmount, err)
	}
	items := make([]models.OrderLineItem, 0, len(do.Items))
	for _, it := range do.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return nil, fmt.Errorf("order %s item price %q: %w", do.OrderID, it.Price, err)
		}
		items = append(items, models.OrderLineItem{
			ProductID: it.ProductID, Title: it.Title, Image: it.Image, UnitPrice: price, Quantity: it.Quantity,
		})
	}
	a := do.ShippingAddress
	o := &models.Order{
		ID:            do.OrderID,
		UserID:        do.UserID,
		UserEmail:     do.UserEmail,
		Items:         items,
		TotalAmount:   total,
		Status:        models.OrderStatus(do.Status),
		PaymentMethod: models.PaymentMethod(do.PaymentMethod),
		PaymentStatus: models.PaymentStatus(do.PaymentStatus),
		PaymentID:     do.PaymentID,
		ShippingAddress: models.ShippingAddress{
			Name: a.Name, Phone: a.Phone, Street: a.Street, City: a.City,
			State: a.State, Pincode: a.Pincode, Landmark: a.Landmark,
		},
		OrderedAt:              parseTime(do.OrderedAt),
		UpdatedAt:              parseTime(do.UpdatedAt),
		FollowUpReminderStatus: models.OrderStatus(do.FollowUpReminderStatus),
	}
	if do.FollowUpReminderSentAt != nil {
		t := parseTime(*do.FollowUpReminderSentAt)
		o.FollowUpReminderSentAt = &t
	}
	return o, nil
}
