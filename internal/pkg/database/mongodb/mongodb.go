// Package mongodb persists record updates of the workcell linkers, one
// document per linker key.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ohowland/wadf_core/internal/pkg/msg"
	"github.com/ohowland/wadf_core/internal/pkg/record"
)

// Config locates the collection documents are written to.
type Config struct {
	URI        string
	Database   string
	Collection string
}

type collection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Handler upserts the record updates of its sources.
type Handler struct {
	pid    uuid.UUID
	config Config
	logger *slog.Logger
	inbox  <-chan msg.Msg
	cancel func()
}

// New subscribes a Handler to the record topic of every source.
func New(cfg Config, logger *slog.Logger, sources ...msg.Publisher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	pid := uuid.New()
	inbox, cancel := msg.Collect(pid, msg.Record, sources...)
	return &Handler{
		pid:    pid,
		config: cfg,
		logger: logger.With("component", "mongodb"),
		inbox:  inbox,
		cancel: cancel,
	}
}

// PID is the subscriber id of the handler.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// Close unsubscribes from every source; Process returns once the inbox drained.
func (h *Handler) Close() {
	h.cancel()
}

// Run connects to the configured server and processes updates until ctx is
// done or the handler is closed.
func (h *Handler) Run(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.config.URI))
	if err != nil {
		return fmt.Errorf("connect %s: %w", h.config.URI, err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			h.logger.Warn("Disconnect failed", slog.Any("error", err))
		}
	}()
	return h.Process(ctx, client.Database(h.config.Database).Collection(h.config.Collection))
}

// Process writes every update of the inbox to coll. A failed write is
// logged and the update dropped.
func (h *Handler) Process(ctx context.Context, coll collection) error {
	opts := options.Update().SetUpsert(true)
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				h.logger.Info("Process shutdown")
				return nil
			}
			u, ok := m.Payload().(record.Update)
			if !ok {
				continue
			}
			if _, err := coll.UpdateOne(ctx, filter(u), document(m.PID(), u), opts); err != nil {
				h.logger.Error("Upsert failed", slog.String("linker", u.Linker), slog.String("key", u.Key), slog.Any("error", err))
			}
		case <-ctx.Done():
			h.cancel()
			return ctx.Err()
		}
	}
}

func filter(u record.Update) bson.M {
	return bson.M{"linker": u.Linker, "section": string(u.Section), "key": u.Key}
}

func document(pid uuid.UUID, u record.Update) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.M{
			"pid":       pid.String(),
			"value":     fmt.Sprint(u.Entry.Value),
			"timestamp": u.Entry.Timestamp,
		}},
	}
}
