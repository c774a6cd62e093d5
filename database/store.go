package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sanjay9342/ramesh-computers/repository"
	"go.uber.org/zap"
)

const (
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

type StoreOptions struct {
	Driver        string
	MongoURL      string
	MongoDB       string
	ProductsTable string
	OrdersTable   string
	// AWS is only consulted by the dynamodb driver.
	AWS func(ctx context.Context) (aws.Config, error)
}

// OpenStore connects the datastore selected by opts.Driver.
func OpenStore(ctx context.Context, opts StoreOptions, logger *zap.Logger) (repository.Store, error) {
	switch opts.Driver {
	case DriverMongo:
		client, db, err := ConnectMongo(ctx, opts.MongoURL, opts.MongoDB)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to ensure MongoDB indexes", zap.Error(err))
		}
		logger.Info("Connected to MongoDB", zap.String("database", opts.MongoDB))
		return store, nil

	case DriverDynamoDB:
		if opts.AWS == nil {
			return nil, fmt.Errorf("dynamodb driver needs an AWS config")
		}
		cfg, err := opts.AWS(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Using DynamoDB",
			zap.String("products_table", opts.ProductsTable),
			zap.String("orders_table", opts.OrdersTable))
		return repository.NewDynamoStore(dynamodb.NewFromConfig(cfg), opts.ProductsTable, opts.OrdersTable), nil

	case DriverMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
