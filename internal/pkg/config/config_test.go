package config

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestLoadExampleWorkcell(t *testing.T) {
	cfg, err := Load("../../../config/workcell.toml")
	assert.NilError(t, err)

	assert.Equal(t, cfg.Workcell.Name, "AssemblyCell")
	assert.DeepEqual(t, cfg.LinkerNames(), []string{"AssemblyBlockActuator", "AssemblySensor", "Conveyor", "SCARARobot"})
	assert.Equal(t, cfg.Runtime.PoolSize, 2)

	dio := cfg.Drivers["VDIO_DRIVER2"]
	assert.Equal(t, dio.Kind, KindVirtualDIO)
	assert.Equal(t, len(dio.Outputs), 4)
	assert.Equal(t, dio.Outputs[0].Pin, 5)
	assert.Equal(t, dio.Outputs[0].Target, 0.16)
	assert.Equal(t, cfg.Drivers["VCVY_DEVICE"].Conveyor.Velocity, 1.0)

	sensor := cfg.Workcell.Linkers["AssemblySensor"]
	assert.DeepEqual(t, sensor.Pins, []int{3})
	assert.Equal(t, sensor.PollMS, 200)
}

func TestDefaultsSurviveOverlay(t *testing.T) {
	cfg, err := Parse(`
[workcell]
name = "cell"

[workcell.linkers.Conveyor]
`)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Runtime.Completion, "first")
	assert.Equal(t, cfg.Logging.Level, "info")
	assert.Equal(t, cfg.MongoDB.Database, "wadf")
}

func TestMissingWorkcellIsFatal(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"no workcell", `[runtime]
pool_size = 4`, "workcell name is missing"},
		{"no linkers", `[workcell]
name = "cell"`, "declares no linkers"},
		{"undeclared driver", `[workcell]
name = "cell"
[workcell.linkers.Conveyor]
virtual = "VCVY_DEVICE"`, "driver VCVY_DEVICE is not declared"},
		{"unknown kind", `[drivers.X]
kind = "serial-dio"
[workcell]
name = "cell"
[workcell.linkers.Conveyor]`, `unknown kind "serial-dio"`},
		{"modbus without addr", `[drivers.ADIO]
kind = "modbus-dio"
[workcell]
name = "cell"
[workcell.linkers.Conveyor]`, "modbus addr is missing"},
		{"unknown key", `[workcell]
name = "cell"
colour = "red"
[workcell.linkers.Conveyor]`, `unknown key "workcell.colour"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			assert.Assert(t, errors.Is(err, ErrInvalid))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/absent.toml")
	assert.ErrorContains(t, err, "failed to read workcell file")
}
