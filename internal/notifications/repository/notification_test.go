package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	notificationserrors "medislot/internal/notifications/errors"
	"medislot/pkg/config"
	"medislot/pkg/model"
)

func newMongoRepo(mt *mtest.T) *mongoNotificationRepository {
	return &mongoNotificationRepository{
		cfg:        &config.Config{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
		collection: mt.Coll,
	}
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns an id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		n := &model.Notification{RecipientID: "doctor-1", Message: "New appointment request"}
		require.NoError(mt, newMongoRepo(mt).Create(context.Background(), n))
		assert.True(mt, primitive.IsValidObjectID(n.ID))
		assert.False(mt, n.CreatedAt.IsZero())

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		read, ok := evt.Command.Lookup("documents", "0", "read").BooleanOK()
		assert.True(mt, ok)
		assert.False(mt, read)
	})
}

func TestMongoMarkRead(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID().Hex()

	mt.Run("marks the notification", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, newMongoRepo(mt).MarkRead(context.Background(), id))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)
		read, ok := evt.Command.Lookup("updates", "0", "u", "$set", "read").BooleanOK()
		assert.True(mt, ok && read)
	})

	mt.Run("already read still succeeds", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		assert.NoError(mt, newMongoRepo(mt).MarkRead(context.Background(), id))
	})

	mt.Run("no match is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := newMongoRepo(mt).MarkRead(context.Background(), id)
		assert.ErrorIs(mt, err, notificationserrors.ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		err := newMongoRepo(mt).MarkRead(context.Background(), "nope")
		assert.ErrorIs(mt, err, notificationserrors.ErrInvalidID)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestMongoMarkAllRead(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("reports modified count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 3},
			bson.E{Key: "nModified", Value: 3},
		))

		modified, err := newMongoRepo(mt).MarkAllRead(context.Background(), "patient-1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), modified)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		multi, _ := evt.Command.Lookup("updates", "0", "multi").BooleanOK()
		assert.True(mt, multi)
		unreadOnly, ok := evt.Command.Lookup("updates", "0", "q", "read").BooleanOK()
		assert.True(mt, ok)
		assert.False(mt, unreadOnly)
	})
}

func TestMongoFindUnread(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("filters unread newest first", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "recipient_id", Value: "patient-1"},
				{Key: "message", Value: "accepted"},
				{Key: "read", Value: false},
			},
		))

		items, err := newMongoRepo(mt).FindUnread(context.Background(), "patient-1", 50)
		require.NoError(mt, err)
		require.Len(mt, items, 1)
		assert.Equal(mt, "patient-1", items[0].RecipientID)
		assert.NotEmpty(mt, items[0].ID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		recipient, _ := evt.Command.Lookup("filter", "recipient_id").StringValueOK()
		assert.Equal(mt, "patient-1", recipient)
		read, ok := evt.Command.Lookup("filter", "read").BooleanOK()
		assert.True(mt, ok)
		assert.False(mt, read)
		createdAt, _ := evt.Command.Lookup("sort", "created_at").AsInt64OK()
		assert.Equal(mt, int64(-1), createdAt)
	})
}

func TestMongoFindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := newMongoRepo(mt).FindByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, notificationserrors.ErrNotFound)
	})
}
