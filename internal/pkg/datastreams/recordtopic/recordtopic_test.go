package recordtopic

import (
	"context"
	"testing"
	"time"

	"gocloud.dev/pubsub/mempubsub"
	"gotest.tools/v3/assert"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/record"
)

func TestEncodePose(t *testing.T) {
	d := 0.0135
	u := record.Update{
		Linker:  "SCARARobot",
		Section: record.Control,
		Key:     "SCARARobot_control_absPosition_arg",
		Entry:   record.Entry{Value: driver.Pose{D2: &d, D3: &d}, Timestamp: time.Unix(10, 0).UTC()},
	}
	p, err := Encode(u)
	assert.NilError(t, err)
	got, err := Decode(p)
	assert.NilError(t, err)
	assert.Equal(t, got.Entry.Value.(driver.Pose).String(), "(None,None,None,None,0.0135,0.0135)")
	assert.Assert(t, got.Entry.Timestamp.Equal(u.Entry.Timestamp))
}

func TestForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	topic := mempubsub.NewTopic()
	defer topic.Shutdown(context.Background())
	sub := mempubsub.NewSubscription(topic, time.Minute)
	defer sub.Shutdown(context.Background())

	rec := record.New("AssemblySensor", record.Layout{
		record.Monitoring: {"AssemblySensor_monitoring_state_arg"},
	})
	f := New(topic, nil, rec)
	done := make(chan error)
	go func() { done <- f.Run(ctx) }()

	assert.NilError(t, rec.Set(record.Monitoring, "AssemblySensor_monitoring_state_arg", true, time.Now()))

	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()
	m, err := sub.Receive(rctx)
	assert.NilError(t, err)
	m.Ack()
	assert.Equal(t, m.Metadata[LinkerKey], "AssemblySensor")
	assert.Equal(t, m.Metadata[SectionKey], "Monitoring")
	u, err := Decode(m.Body)
	assert.NilError(t, err)
	assert.Equal(t, u.Key, "AssemblySensor_monitoring_state_arg")
	assert.Equal(t, u.Entry.Value, true)

	f.Close()
	assert.NilError(t, <-done)
}
