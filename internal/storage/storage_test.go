package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"top-loras/internal/domain"
)

func TestModelStorage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("bulk upsert skips records without id", func(mt *mtest.T) {
		store := NewMongoModelStorage(mt.DB, "loras")
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		err := store.BulkUpsert(context.Background(), "image-to-video", []domain.ModelRecord{
			{ID: "org/a", Downloads: 5},
			{TitleEN: "no id"},
		})
		require.NoError(t, err)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "update", started.CommandName)
		updates, err := started.Command.LookupErr("updates")
		require.NoError(t, err)
		values, err := updates.Array().Values()
		require.NoError(t, err)
		assert.Len(t, values, 1)
	})

	mt.Run("upserts the same id under two tasks", func(mt *mtest.T) {
		store := NewMongoModelStorage(mt.DB, "loras")
		for i := 0; i < 2; i++ {
			mt.AddMockResponses(
				mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
				mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			)
		}
		recs := []domain.ModelRecord{{ID: "org/a", Downloads: 5}}

		for _, task := range []string{"image-to-video", "text-to-image-synthesis"} {
			require.NoError(t, store.BulkUpsert(context.Background(), task, recs))

			update := mt.GetStartedEvent()
			require.NotNil(t, update)
			require.Equal(t, "update", update.CommandName)
			assert.Equal(t, task+"|org/a", update.Command.Lookup("updates", "0", "q", "_id").StringValue())
			assert.Equal(t, task, update.Command.Lookup("updates", "0", "u", "task").StringValue())
			assert.Equal(t, "org/a", update.Command.Lookup("updates", "0", "u", "model_id").StringValue())

			prune := mt.GetStartedEvent()
			require.NotNil(t, prune)
			require.Equal(t, "delete", prune.CommandName)
			assert.Equal(t, task, prune.Command.Lookup("deletes", "0", "q", "task").StringValue())
			kept, err := prune.Command.Lookup("deletes", "0", "q", "_id", "$nin").Array().Values()
			require.NoError(t, err)
			require.Len(t, kept, 1)
			assert.Equal(t, task+"|org/a", kept[0].StringValue())
		}
	})

	mt.Run("bulk upsert reports a failed prune", func(mt *mtest.T) {
		store := NewMongoModelStorage(mt.DB, "loras")
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad filter"}),
		)

		err := store.BulkUpsert(context.Background(), "image-to-video", []domain.ModelRecord{{ID: "org/a"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prune")
	})

	mt.Run("bulk upsert with nothing to write", func(mt *mtest.T) {
		store := NewMongoModelStorage(mt.DB, "loras")
		require.NoError(t, store.BulkUpsert(context.Background(), "", []domain.ModelRecord{{TitleEN: "x"}}))
		assert.Nil(t, mt.GetStartedEvent())
	})

	mt.Run("find by id", func(mt *mtest.T) {
		store := NewMongoModelStorage(mt.DB, "loras")
		ns := mt.DB.Name() + ".loras"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "image-to-video|org/a"},
			{Key: "model_id", Value: "org/a"},
			{Key: "title_en", Value: "A"},
			{Key: "downloads", Value: int64(42)},
			{Key: "task", Value: "image-to-video"},
		}))

		rec, err := store.FindByID(context.Background(), "org/a")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "org/a", rec.ID)
		assert.Equal(t, int64(42), rec.Downloads)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "org/a", started.Command.Lookup("filter", "model_id").StringValue())
	})

	mt.Run("find by id missing", func(mt *mtest.T) {
		store := NewMongoModelStorage(mt.DB, "loras")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".loras", mtest.FirstBatch))

		rec, err := store.FindByID(context.Background(), "org/none")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestStatusStorage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("set status", func(mt *mtest.T) {
		store := NewMongoStatusStorage(mt.DB, "_status")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := store.SetStatus(context.Background(), domain.StatusDocument{
			ID:     "cache/top_loras.json",
			Status: domain.FetchStatusOK,
			Count:  20,
		})
		require.NoError(t, err)
	})

	mt.Run("get status", func(mt *mtest.T) {
		store := NewMongoStatusStorage(mt.DB, "_status")
		updated := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"._status", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "cache/top_loras.json"},
			{Key: "status", Value: "FAILED"},
			{Key: "error", Value: "unauthorized"},
			{Key: "updatedAt", Value: updated},
		}))

		doc, err := store.GetStatus(context.Background(), "cache/top_loras.json")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, domain.FetchStatusFailed, doc.Status)
		assert.Equal(t, "unauthorized", doc.Error)
		assert.True(t, updated.Equal(doc.UpdatedAt))
	})

	mt.Run("get status never fetched", func(mt *mtest.T) {
		store := NewMongoStatusStorage(mt.DB, "_status")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"._status", mtest.FirstBatch))

		doc, err := store.GetStatus(context.Background(), "cache/none.json")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})
}
