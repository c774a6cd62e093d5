package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
)

// MongoStore persists products and orders in MongoDB. Order placement uses
// multi-document transactions and therefore needs a replica set.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	orders   *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		products: db.Collection(productsCollection),
		orders:   db.Collection(ordersCollection),
	}
}

// EnsureIndexes creates the indexes the order listings and reminder sweep rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "orderedAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "orderedAt", Value: 1}}},
		{Keys: bson.D{{Key: "orderedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	_, err = s.products.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}})
	if err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Products() ProductRepository { return mongoProducts{s.products} }
func (s *MongoStore) Orders() OrderRepository     { return mongoOrders{s.orders} }

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txnOpts); err != nil {
			return fmt.Errorf("start transaction: %w", err)
		}
		if err := fn(sc, &mongoTx{products: s.products, orders: s.orders}); err != nil {
			_ = session.AbortTransaction(context.Background())
			return err
		}
		return session.CommitTransaction(sc)
	})
	return classifyMongoError(err)
}

// classifyMongoError wraps errors the server labels as retryable in
// ErrConflict and leaves everything else untouched.
func classifyMongoError(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) &&
		(se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("UnknownTransactionCommitResult")) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

type mongoTx struct {
	products *mongo.Collection
	orders   *mongo.Collection
}

func (tx *mongoTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return findProduct(ctx, tx.products, id)
}

func (tx *mongoTx) SetProductStock(ctx context.Context, id string, stock int, updatedAt time.Time) error {
	res, err := tx.products.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"stock": stock, "updatedAt": updatedAt}},
	)
	if err != nil {
		return fmt.Errorf("update stock for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *mongoTx) InsertOrder(ctx context.Context, order *models.Order) error {
	doc, err := toMongoOrder(order)
	if err != nil {
		return err
	}
	if _, err := tx.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

type mongoProducts struct{ collection *mongo.Collection }

func findProduct(ctx context.Context, c *mongo.Collection, id string) (*models.Product, error) {
	var doc mongoProduct
	if err := c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return doc.toModel()
}

func (r mongoProducts) FindByID(ctx context.Context, id string) (*models.Product, error) {
	return findProduct(ctx, r.collection, id)
}

func (r mongoProducts) FindAll(ctx context.Context) ([]models.Product, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoProduct
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r mongoProducts) Create(ctx context.Context, product *models.Product) error {
	doc, err := toMongoProduct(product)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r mongoProducts) Update(ctx context.Context, product *models.Product) error {
	doc, err := toMongoProduct(product)
	if err != nil {
		return err
	}
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": product.ID}, doc)
	if err != nil {
		return fmt.Errorf("replace product %s: %w", product.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoProducts) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoOrders struct{ collection *mongo.Collection }

func (r mongoOrders) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var doc mongoOrder
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return doc.toModel()
}

func (r mongoOrders) FindAll(ctx context.Context) ([]models.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r mongoOrders) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

func (r mongoOrders) FindByStatuses(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	values := make([]string, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}
	return r.find(ctx, bson.M{"status": bson.M{"$in": values}})
}

func (r mongoOrders) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoOrder
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	out := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r mongoOrders) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": updatedAt}})
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("find order %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r mongoOrders) MarkReminderSent(ctx context.Context, id string, status models.OrderStatus, sentAt time.Time) error {
	return r.set(ctx, id, bson.M{
		"followUpReminderSentAt": sentAt,
		"followUpReminderStatus": string(status),
		"updatedAt":              sentAt,
	})
}

func (r mongoOrders) set(ctx context.Context, id string, fields bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoProduct struct {
	ID            string                `bson:"_id"`
	Title         string                `bson:"title"`
	Slug          string                `bson:"slug"`
	Category      string                `bson:"category"`
	Brand         string                `bson:"brand"`
	Description   string                `bson:"description"`
	Price         primitive.Decimal128  `bson:"price"`
	DiscountPrice *primitive.Decimal128 `bson:"discountPrice,omitempty"`
	Image         string                `bson:"image"`
	Images        []string              `bson:"images"`
	Specs         map[string]any        `bson:"specs,omitempty"`
	Stock         int                   `bson:"stock"`
	Rating        float64               `bson:"rating"`
	ReviewCount   int                   `bson:"reviewCount"`
	IsFeatured    bool                  `bson:"isFeatured"`
	FreeDelivery  bool                  `bson:"freeDelivery"`
	CreatedAt     time.Time             `bson:"createdAt"`
	UpdatedAt     time.Time             `bson:"updatedAt"`
}

type mongoLineItem struct {
	ProductID string               `bson:"productId"`
	Title     string               `bson:"title"`
	Image     string               `bson:"image,omitempty"`
	UnitPrice primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
}

type mongoOrder struct {
	ID                     string                 `bson:"_id"`
	UserID                 string                 `bson:"userId"`
	UserEmail              string                 `bson:"userEmail,omitempty"`
	Items                  []mongoLineItem        `bson:"items"`
	TotalAmount            primitive.Decimal128   `bson:"totalAmount"`
	Status                 string                 `bson:"status"`
	PaymentMethod          string                 `bson:"paymentMethod"`
	PaymentStatus          string                 `bson:"paymentStatus"`
	PaymentID              string                 `bson:"paymentId,omitempty"`
	ShippingAddress        models.ShippingAddress `bson:"shippingAddress"`
	OrderedAt              time.Time              `bson:"orderedAt"`
	UpdatedAt              time.Time              `bson:"updatedAt"`
	FollowUpReminderSentAt *time.Time             `bson:"followUpReminderSentAt,omitempty"`
	FollowUpReminderStatus string                 `bson:"followUpReminderStatus,omitempty"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v.String(), err)
	}
	return d, nil
}

func toMongoProduct(p *models.Product) (*mongoProduct, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}
	doc := &mongoProduct{
		ID: p.ID, Title: p.Title, Slug: p.Slug, Category: p.Category, Brand: p.Brand,
		Description: p.Description, Price: price, Image: p.Image, Images: p.Images, Specs: p.Specs,
		Stock: p.Stock, Rating: p.Rating, ReviewCount: p.ReviewCount, IsFeatured: p.IsFeatured,
		FreeDelivery: p.FreeDelivery, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	if p.DiscountPrice != nil {
		dp, err := toDecimal128(*p.DiscountPrice)
		if err != nil {
			return nil, err
		}
		doc.DiscountPrice = &dp
	}
	return doc, nil
}

func (d *mongoProduct) toModel() (*models.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	p := &models.Product{
		ID: d.ID, Title: d.Title, Slug: d.Slug, Category: d.Category, Brand: d.Brand,
		Description: d.Description, Price: price, Image: d.Image, Images: d.Images, Specs: d.Specs,
		Stock: d.Stock, Rating: d.Rating, ReviewCount: d.ReviewCount, IsFeatured: d.IsFeatured,
		FreeDelivery: d.FreeDelivery, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	if d.DiscountPrice != nil {
		dp, err := fromDecimal128(*d.DiscountPrice)
		if err != nil {
			return nil, err
		}
		p.DiscountPrice = &dp
	}
	return p, nil
}

func toMongoOrder(o *models.Order) (*mongoOrder, error) {
	total, err := toDecimal128(o.TotalAmount)
	if err != nil {
		return nil, err
	}
	items := make([]mongoLineItem, 0, len(o.Items))
	for _, it := range o.Items {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, mongoLineItem{
			ProductID: it.ProductID, Title: it.Title, Image: it.Image, UnitPrice: price, Quantity: it.Quantity,
		})
	}
	return &mongoOrder{
		ID:                     o.ID,
		UserID:                 o.UserID,
		UserEmail:              o.UserEmail,
		Items:                  items,
		TotalAmount:            total,
		Status:                 string(o.Status),
		PaymentMethod:          string(o.PaymentMethod),
		PaymentStatus:          string(o.PaymentStatus),
		PaymentID:              o.PaymentID,
		ShippingAddress:        o.ShippingAddress,
		OrderedAt:              o.OrderedAt,
		UpdatedAt:              o.UpdatedAt,
		FollowUpReminderSentAt: o.FollowUpReminderSentAt,
		FollowUpReminderStatus: string(o.FollowUpReminderStatus),
	}, nil
}

func (d *mongoOrder) toModel() (*models.Order, error) {
	total, err := fromDecimal128(d.TotalAmount)
	if err != nil {
		return nil, err
	}
	items := make([]models.OrderLineItem, 0, len(d.Items))
	for _, it := range d.Items {
		price, err := fromDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, models.OrderLineItem{
			ProductID: it.ProductID, Title: it.Title, Image: it.Image, UnitPrice: price, Quantity: it.Quantity,
		})
	}
	return &models.Order{
		ID:                     d.ID,
		UserID:                 d.UserID,
		UserEmail:              d.UserEmail,
		Items:                  items,
		TotalAmount:            total,
		Status:                 models.OrderStatus(d.Status),
		PaymentMethod:          models.PaymentMethod(d.PaymentMethod),
		PaymentStatus:          models.PaymentStatus(d.PaymentStatus),
		PaymentID:              d.PaymentID,
		ShippingAddress:        d.ShippingAddress,
		OrderedAt:              d.OrderedAt,
		UpdatedAt:              d.UpdatedAt,
		FollowUpReminderSentAt: d.FollowUpReminderSentAt,
		FollowUpReminderStatus: models.OrderStatus(d.FollowUpReminderStatus),
	}, nil
}
