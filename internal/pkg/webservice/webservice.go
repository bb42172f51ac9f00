// Package webservice exposes the workcell linkers over HTTP.
package webservice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ohowland/wadf_core/internal/pkg/linker"
)

// Workcell is the set of linkers served.
type Workcell interface {
	Name() string
	Linker(class string) (linker.Linker, bool)
	Linkers() []linker.Linker
}

// LinkerStatus describes one linker.
type LinkerStatus struct {
	PID        uuid.UUID   `json:"pid"`
	Class      string      `json:"class"`
	Mode       linker.Mode `json:"mode"`
	Running    bool        `json:"running"`
	Operations []string    `json:"operations"`
}

// ModeRequest is the body of a mode switch.
type ModeRequest struct {
	Mode linker.Mode `json:"mode"`
}

// OpResponse carries the result of an operation.
type OpResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// App serves a Workcell.
type App struct {
	Workcell Workcell
	Logger   *slog.Logger
}

// Router returns the routes of the app.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.BaseHandler).Methods("GET")
	r.HandleFunc("/linkers", app.LinkersHandler).Methods("GET")
	r.HandleFunc("/linkers/{class}", app.LinkerHandler).Methods("GET")
	r.HandleFunc("/linkers/{class}/record", app.RecordHandler).Methods("GET")
	r.HandleFunc("/linkers/{class}/mode", app.ModeHandler).Methods("GET", "PUT")
	r.HandleFunc("/linkers/{class}/ops/{op}", app.OpHandler).Methods("POST")
	return r
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		return slog.Default()
	}
	return app.Logger
}

func (app *App) write(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger().Warn("malformed JSON", slog.Any("error", err))
	}
}

func (app *App) lookup(w http.ResponseWriter, r *http.Request) (linker.Linker, bool) {
	class := mux.Vars(r)["class"]
	l, ok := app.Workcell.Linker(class)
	if !ok {
		app.write(w, http.StatusNotFound, OpResponse{Error: "linker " + class + " not found"})
	}
	return l, ok
}

func status(l linker.Linker) LinkerStatus {
	ops := make([]string, 0, len(l.Operations()))
	for op := range l.Operations() {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return LinkerStatus{
		PID:        l.PID(),
		Class:      l.Class(),
		Mode:       l.Mode(),
		Running:    l.Running(),
		Operations: ops,
	}
}

// BaseHandler names the workcell.
func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	app.write(w, http.StatusOK, map[string]string{"workcell": app.Workcell.Name()})
}

// LinkersHandler lists every linker.
func (app *App) LinkersHandler(w http.ResponseWriter, r *http.Request) {
	out := []LinkerStatus{}
	for _, l := range app.Workcell.Linkers() {
		out = append(out, status(l))
	}
	app.write(w, http.StatusOK, out)
}

// LinkerHandler describes one linker.
func (app *App) LinkerHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.lookup(w, r)
	if !ok {
		return
	}
	app.write(w, http.StatusOK, status(l))
}

// RecordHandler returns a snapshot of a linker's record.
func (app *App) RecordHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.lookup(w, r)
	if !ok {
		return
	}
	app.write(w, http.StatusOK, l.Record().Snapshot())
}

// ModeHandler reads or switches the mode of a linker.
func (app *App) ModeHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.lookup(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodPut {
		var req ModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			app.write(w, http.StatusBadRequest, OpResponse{Error: err.Error()})
			return
		}
		l.SwitchMode(req.Mode)
	}
	app.write(w, http.StatusOK, ModeRequest{Mode: l.Mode()})
}

// OpHandler performs an operation. The body is a JSON array of positional
// arguments and may be empty.
func (app *App) OpHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.lookup(w, r)
	if !ok {
		return
	}
	op := mux.Vars(r)["op"]
	var args []interface{}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		app.write(w, http.StatusBadRequest, OpResponse{Error: err.Error()})
		return
	}

	result, err := linker.Perform(r.Context(), l, op, args)
	switch {
	case err == nil:
		app.write(w, http.StatusOK, OpResponse{Result: result})
	case errors.Is(err, linker.ErrUnknownOperation):
		app.write(w, http.StatusNotFound, OpResponse{Error: err.Error()})
	case errors.Is(err, linker.ErrArgument), errors.Is(err, linker.ErrArity):
		app.write(w, http.StatusBadRequest, OpResponse{Error: err.Error()})
	default:
		app.logger().Error("Operation failed", slog.String("linker", l.Class()), slog.String("op", op), slog.Any("error", err))
		app.write(w, http.StatusInternalServerError, OpResponse{Error: err.Error()})
	}
}
