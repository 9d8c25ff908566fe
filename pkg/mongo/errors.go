package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
	ErrEmptyDatabaseName      = errors.New("mongo database name is empty, use MONGODB_DATABASE env var")
)
