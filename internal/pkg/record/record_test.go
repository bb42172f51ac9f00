package record

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"gotest.tools/v3/assert"

	"github.com/ohowland/wadf_core/internal/pkg/msg"
)

func newRecord() *Record {
	return New("AssemblyBlockActuator", Layout{
		Control:    {"AssemblyBlockActuator_control_state_arg"},
		Monitoring: {"AssemblyBlockActuator_monitoring_state_arg"},
	})
}

func TestDeriveKey(t *testing.T) {
	cases := []struct {
		class, op string
		section   Section
		key       string
	}{
		{"AssemblyBlockActuator", "set_state", Control, "AssemblyBlockActuator_control_state_arg"},
		{"AssemblyBlockActuator", "get_state", Monitoring, "AssemblyBlockActuator_monitoring_state_arg"},
		{"SCARARobot", "set_absPosition", Control, "SCARARobot_control_absPosition_arg"},
		{"SCARARobot", "set_program", Control, "SCARARobot_control_program_arg"},
		{"Conveyor", "set", Control, "Conveyor_control__arg"},
	}
	for _, c := range cases {
		section, key, err := DeriveKey(c.class, c.op)
		assert.NilError(t, err)
		assert.Equal(t, section, c.section)
		assert.Equal(t, key, c.key)

		// stable across calls
		section2, key2, _ := DeriveKey(c.class, c.op)
		assert.Equal(t, section, section2)
		assert.Equal(t, key, key2)
	}
}

func TestDeriveKeyNotAccessor(t *testing.T) {
	_, key, err := DeriveKey("Conveyor", "power_on")
	assert.Assert(t, errors.Is(err, ErrNotAccessor))
	assert.Equal(t, key, "Conveyor_Unknown")
}

func TestSetKnownKey(t *testing.T) {
	r := newRecord()
	ts := time.Now()
	err := r.Set(Control, "AssemblyBlockActuator_control_state_arg", true, ts)
	assert.NilError(t, err)

	e, ok := r.Get(Control, "AssemblyBlockActuator_control_state_arg")
	assert.Assert(t, ok)
	assert.Equal(t, e.Value, true)
	assert.Assert(t, e.Timestamp.Equal(ts))
}

func TestSetUnknownKey(t *testing.T) {
	r := newRecord()
	before := r.Snapshot()

	err := r.Set(Control, "AssemblyBlockActuator_control_missing_arg", true, time.Now())
	assert.Assert(t, errors.Is(err, ErrUnknownKey))

	err = r.Set(Section("Other"), "AssemblyBlockActuator_control_state_arg", true, time.Now())
	assert.Assert(t, errors.Is(err, ErrUnknownKey))

	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Errorf("record mutated (-before +after):\n%s", diff)
	}
	assert.Assert(t, !r.Has(Control, "AssemblyBlockActuator_control_missing_arg"))
}

func TestTimestampNeverMovesBackwards(t *testing.T) {
	r := newRecord()
	key := "AssemblyBlockActuator_control_state_arg"
	now := time.Now()

	assert.NilError(t, r.Set(Control, key, 1, now))
	assert.NilError(t, r.Set(Control, key, 2, now.Add(-time.Second)))

	e, _ := r.Get(Control, key)
	assert.Equal(t, e.Value, 2)
	assert.Assert(t, e.Timestamp.Equal(now))

	last := e.Timestamp
	for i := 0; i < 10; i++ {
		assert.NilError(t, r.Set(Control, key, i, time.Now()))
		e, _ := r.Get(Control, key)
		assert.Assert(t, !e.Timestamp.Before(last))
		last = e.Timestamp
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	r := newRecord()
	snap := r.Snapshot()
	snap[Control]["AssemblyBlockActuator_control_state_arg"] = Entry{Value: "tampered"}

	e, _ := r.Get(Control, "AssemblyBlockActuator_control_state_arg")
	assert.Equal(t, e.Value, nil)
}

func TestSubscribe(t *testing.T) {
	r := newRecord()
	pid := uuid.New()
	ch := r.Subscribe(pid, msg.Record)

	ts := time.Now()
	assert.NilError(t, r.Set(Monitoring, "AssemblyBlockActuator_monitoring_state_arg", []bool{true}, ts))

	m := <-ch
	assert.Equal(t, m.PID(), r.PID())
	update, ok := m.Payload().(Update)
	assert.Assert(t, ok)
	want := Update{
		Linker:  "AssemblyBlockActuator",
		Section: Monitoring,
		Key:     "AssemblyBlockActuator_monitoring_state_arg",
		Entry:   Entry{Value: []bool{true}, Timestamp: ts},
	}
	assert.DeepEqual(t, update, want)

	r.Unsubscribe(pid)
	_, ok = <-ch
	assert.Assert(t, !ok)
}

func TestSubscribeTwiceSharesChannel(t *testing.T) {
	r := newRecord()
	pid := uuid.New()
	first := r.Subscribe(pid, msg.Record)
	second := r.Subscribe(pid, msg.Record)
	assert.Equal(t, first, second)

	assert.NilError(t, r.Set(Monitoring, "AssemblyBlockActuator_monitoring_state_arg", []bool{false}, time.Now()))
	r.Unsubscribe(pid)

	var got int
	for range first {
		got++
	}
	assert.Equal(t, got, 1)
}
