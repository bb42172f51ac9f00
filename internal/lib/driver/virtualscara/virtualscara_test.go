package virtualscara

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

func TestMoveKeepsNilAxes(t *testing.T) {
	r := New("VSCR_DRIVER")
	ctx := context.Background()
	assert.NilError(t, r.SetPower(ctx, true))

	assert.NilError(t, r.MoveAbsolute(ctx, driver.Pose{D1: driver.Val(-0.045)}))
	assert.NilError(t, r.MoveAbsolute(ctx, driver.Pose{D2: driver.Val(0.0135), D3: driver.Val(0.0135)}))
	assert.Equal(t, r.Pose().String(), "(0,0,0,-0.045,0.0135,0.0135)")
	assert.Equal(t, r.Moves(), 2)
}

func TestMoveWithoutPower(t *testing.T) {
	r := New("VSCR_DRIVER")
	assert.Assert(t, !r.Powered())
	assert.NilError(t, r.MoveAbsolute(context.Background(), driver.Pose{D1: driver.Val(-0.045)}))
	assert.Equal(t, r.Moves(), 1)
	assert.Equal(t, r.Pose().String(), "(0,0,0,-0.045,0,0)")
}
