package webservice

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/ohowland/wadf_core/internal/pkg/config"
	"github.com/ohowland/wadf_core/internal/pkg/root"
)

func newApp(t *testing.T) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg, err := config.Load("../../../config/workcell.toml")
	assert.NilError(t, err)
	s, err := root.Build(cfg, logger)
	assert.NilError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &App{Workcell: s, Logger: logger}
}

func serve(app *App, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, "http://example.com"+target, nil)
	} else {
		r = httptest.NewRequest(method, "http://example.com"+target, strings.NewReader(body))
	}
	app.Router().ServeHTTP(w, r)
	return w
}

func TestLinkersGet(t *testing.T) {
	app := newApp(t)

	w := serve(app, "GET", "/linkers", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, w.Header().Get("Content-Type"), "application/json; charset=UTF-8")

	var got []LinkerStatus
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, len(got), 4)
	assert.Equal(t, got[2].Class, "Conveyor")
	assert.DeepEqual(t, got[2].Operations, []string{"power_off", "power_on"})
	assert.Equal(t, got[2].Mode.String(), "VirtualMode")
}

func TestUnknownLinker(t *testing.T) {
	app := newApp(t)

	w := serve(app, "GET", "/linkers/Gripper/record", "")
	assert.Equal(t, w.Code, http.StatusNotFound)
}

func TestOpUpdatesRecord(t *testing.T) {
	app := newApp(t)

	w := serve(app, "POST", "/linkers/AssemblyBlockActuator/ops/set_state", "[true]")
	assert.Equal(t, w.Code, http.StatusOK, w.Body.String())

	w = serve(app, "GET", "/linkers/AssemblyBlockActuator/record", "")
	assert.Equal(t, w.Code, http.StatusOK)
	var snap map[string]map[string]struct{ Value interface{} }
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, snap["Control"]["AssemblyBlockActuator_control_state_arg"].Value, true)
}

func TestOpErrors(t *testing.T) {
	app := newApp(t)

	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"unknown op", "/linkers/Conveyor/ops/reverse", "", http.StatusNotFound},
		{"wrong type", "/linkers/AssemblyBlockActuator/ops/set_state", `["open"]`, http.StatusBadRequest},
		{"missing arg", "/linkers/AssemblyBlockActuator/ops/set_state", `[]`, http.StatusBadRequest},
		{"malformed", "/linkers/AssemblyBlockActuator/ops/set_state", `{`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(app, "POST", tc.target, tc.body)
			assert.Equal(t, w.Code, tc.code, w.Body.String())
			var resp OpResponse
			assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Assert(t, resp.Error != "")
		})
	}
}

func TestModePut(t *testing.T) {
	app := newApp(t)

	w := serve(app, "PUT", "/linkers/Conveyor/mode", `{"mode":"DigitalTwinMode"}`)
	assert.Equal(t, w.Code, http.StatusOK)
	l, _ := app.Workcell.Linker("Conveyor")
	assert.Equal(t, l.Mode().String(), "DigitalTwinMode")

	w = serve(app, "PUT", "/linkers/Conveyor/mode", `{"mode":"Hybrid"}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)
	assert.Equal(t, l.Mode().String(), "DigitalTwinMode")

	w = serve(app, "GET", "/linkers/Conveyor/mode", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, strings.TrimSpace(w.Body.String()), `{"mode":"DigitalTwinMode"}`)
}

func TestOpChunkedEmptyBody(t *testing.T) {
	app := newApp(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "http://example.com/linkers/Conveyor/ops/power_on", strings.NewReader(""))
	r.ContentLength = -1
	r.TransferEncoding = []string{"chunked"}
	app.Router().ServeHTTP(w, r)
	assert.Equal(t, w.Code, http.StatusOK, w.Body.String())
}
