package mongo

import (
	"context"
	"fmt"

	"escaperoom/pkg/db"
	apperrors "escaperoom/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) db.TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

// ExecuteTransaction runs fn inside session.WithTransaction. The driver
// retries fn on TransientTransactionError, which is what resolves two
// writers racing on the same slot claim document.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TxFunc) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

func (m *mongoTransactionManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}
