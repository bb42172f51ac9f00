// Package recordtopic forwards record updates of the workcell linkers to a
// gocloud pubsub topic, gob encoded.
package recordtopic

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/google/uuid"
	"gocloud.dev/pubsub"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/msg"
	"github.com/ohowland/wadf_core/internal/pkg/record"
)

// Record values are carried in interfaces; every non-basic value type stored
// by a linker must be registered here.
func init() {
	gob.Register(driver.Pose{})
}

// Metadata keys set on every message.
const (
	LinkerKey  = "linker"
	SectionKey = "section"
	KeyKey     = "key"
)

// Encode returns the gob encoding of u.
func Encode(u record.Update) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(u); err != nil {
		return nil, fmt.Errorf("encode gob: %w", err)
	}
	return b.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(p []byte) (record.Update, error) {
	var u record.Update
	if err := gob.NewDecoder(bytes.NewReader(p)).Decode(&u); err != nil {
		return record.Update{}, fmt.Errorf("decode gob: %w", err)
	}
	return u, nil
}

// Message wraps u for sink.
func Message(u record.Update) (*pubsub.Message, error) {
	body, err := Encode(u)
	if err != nil {
		return nil, err
	}
	return &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			LinkerKey:  u.Linker,
			SectionKey: string(u.Section),
			KeyKey:     u.Key,
		},
	}, nil
}

// Forwarder sends the record updates of its sources to a topic.
type Forwarder struct {
	sink   *pubsub.Topic
	logger *slog.Logger
	inbox  <-chan msg.Msg
	cancel func()
}

// New subscribes a Forwarder to the record topic of every source. Updates
// applied before Run starts are buffered up to the depth of each source.
func New(sink *pubsub.Topic, logger *slog.Logger, sources ...msg.Publisher) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	inbox, cancel := msg.Collect(uuid.New(), msg.Record, sources...)
	return &Forwarder{
		sink:   sink,
		logger: logger.With("component", "recordtopic"),
		inbox:  inbox,
		cancel: cancel,
	}
}

// Run sends updates until ctx is done or the forwarder is closed. Updates
// that cannot be sent are logged and dropped.
func (f *Forwarder) Run(ctx context.Context) error {
	defer f.cancel()
	for {
		select {
		case m, ok := <-f.inbox:
			if !ok {
				return nil
			}
			if err := f.send(ctx, m); err != nil {
				f.logger.Error("Record update not published", slog.Any("error", err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Proc runs the forwarder as a component.
func (f *Forwarder) Proc() component.Proc {
	return func(l *component.L) {
		_ = f.Run(l.Context())
	}
}

// Close unsubscribes from every source.
func (f *Forwarder) Close() {
	f.cancel()
}

func (f *Forwarder) send(ctx context.Context, m msg.Msg) error {
	u, ok := m.Payload().(record.Update)
	if !ok {
		return fmt.Errorf("unexpected payload %T", m.Payload())
	}
	pm, err := Message(u)
	if err != nil {
		return err
	}
	if err := f.sink.Send(ctx, pm); err != nil {
		return fmt.Errorf("send %s: %w", u.Key, err)
	}
	return nil
}
