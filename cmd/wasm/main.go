//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"syscall/js"

	"github.com/plantrace/plantrace/backend-go/internal/config"
	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
)

var (
	session   *engine.Session
	options   config.Options
	gate      *engine.Gate
	callbacks js.Value
)

func main() {
	// Create the engine API object
	planEngine := js.Global().Get("Object").New()

	// Commands
	planEngine.Set("init", js.FuncOf(initSession))
	planEngine.Set("load", js.FuncOf(load))
	planEngine.Set("loadFailed", js.FuncOf(loadFailed))
	planEngine.Set("loadSample", js.FuncOf(loadSample))
	planEngine.Set("setBackground", js.FuncOf(setBackground))
	planEngine.Set("backgroundFailed", js.FuncOf(backgroundFailed))
	planEngine.Set("dispatch", js.FuncOf(dispatch))
	planEngine.Set("saveRequest", js.FuncOf(saveRequest))
	planEngine.Set("saveDone", js.FuncOf(saveDone))

	// Queries
	planEngine.Set("frame", js.FuncOf(frame))
	planEngine.Set("options", js.FuncOf(getOptions))
	planEngine.Set("document", js.FuncOf(getDocument))

	js.Global().Set("planEngine", planEngine)

	// Signal that WASM is ready
	js.Global().Set("planWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

var errNoSession = errors.New("init has not been called")

// call invokes an optional page callback with a JSON argument.
func call(name string, v any) {
	if callbacks.IsUndefined() || callbacks.IsNull() {
		return
	}
	fn := callbacks.Get(name)
	if fn.Type() != js.TypeFunction {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fn.Invoke(string(data))
}

func frameJSON() string {
	data, err := json.Marshal(session.Frame())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// --- Command Handlers ---

// initSession(query, callbacks) creates the session from the page query
// string. callbacks may carry onNotice, onProbe and onReady.
func initSession(this js.Value, args []js.Value) interface{} {
	query := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		query = strings.TrimPrefix(args[0].String(), "?")
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return errorResult(err)
	}
	callbacks = js.Undefined()
	if len(args) > 1 {
		callbacks = args[1]
	}

	options = config.ParseOptions(values)
	opts := engine.OptionsFromConfig(options)
	opts.Notify = func(n engine.Notice) { call("onNotice", n) }
	opts.OnProbe = func(r engine.ProbeReport) { call("onProbe", r) }
	session = engine.NewSession(opts)

	gate = engine.NewGate(func() { call("onReady", session.Frame()) })
	gate.Add(1)
	if options.Src != "" {
		gate.Add(1)
	}

	data, err := json.Marshal(options)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func load(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	if len(args) < 1 {
		return errorResult(errors.New("missing load response JSON"))
	}

	var resp document.LoadResponse
	if err := json.Unmarshal([]byte(args[0].String()), &resp); err != nil {
		session.LoadFailed(err)
		gate.Done()
		return errorResult(err)
	}
	err := session.Load(&resp)
	gate.Done()
	if err != nil {
		return errorResult(err)
	}
	return okResult()
}

func loadFailed(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	cause := "request failed"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		cause = args[0].String()
	}
	session.LoadFailed(errors.New(cause))
	gate.Done()
	return okResult()
}

func loadSample(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	planID := "plan_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		planID = args[0].String()
	}
	err := session.Load(document.NewSampleResponse(planID))
	gate.Done()
	if err != nil {
		return errorResult(err)
	}
	return okResult()
}

// setBackground(src, width, height) records the floor plan once the page
// has loaded it.
func setBackground(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	if len(args) < 3 {
		return errorResult(errors.New("missing src, width or height"))
	}
	session.SetBackground(args[0].String(), args[1].Float(), args[2].Float())
	gate.Done()
	return okResult()
}

func backgroundFailed(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	src := options.Src
	if len(args) > 0 && args[0].Type() == js.TypeString {
		src = args[0].String()
	}
	session.BackgroundFailed(src, errors.New("image load failed"))
	gate.Done()
	return okResult()
}

// dispatch applies one event and returns the next frame as JSON.
func dispatch(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	if len(args) < 1 {
		return errorResult(errors.New("missing event JSON"))
	}

	var ev engine.Event
	if err := json.Unmarshal([]byte(args[0].String()), &ev); err != nil {
		return errorResult(err)
	}
	if err := session.Dispatch(ev); err != nil {
		return errorResult(err)
	}
	return js.ValueOf(frameJSON())
}

// saveRequest(metaJSON) returns the body to POST to the save port.
func saveRequest(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	var meta map[string]json.RawMessage
	if len(args) > 0 && args[0].Type() == js.TypeString && args[0].String() != "" {
		if err := json.Unmarshal([]byte(args[0].String()), &meta); err != nil {
			return errorResult(err)
		}
	}

	req, err := session.SaveRequest(meta)
	if err != nil {
		return errorResult(err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

// saveDone(savedJSON, errorMessage) reports the save port's answer. A
// non-empty errorMessage marks the save as failed.
func saveDone(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	if len(args) > 1 && args[1].Type() == js.TypeString && args[1].String() != "" {
		session.SaveDone(nil, errors.New(args[1].String()))
		return okResult()
	}

	var saved *document.SaveRequest
	if len(args) > 0 && args[0].Type() == js.TypeString && args[0].String() != "" {
		saved = &document.SaveRequest{}
		if err := json.Unmarshal([]byte(args[0].String()), saved); err != nil {
			session.SaveDone(nil, err)
			return errorResult(err)
		}
	}
	session.SaveDone(saved, nil)
	return okResult()
}

// --- Query Handlers ---

func frame(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	return js.ValueOf(frameJSON())
}

func getOptions(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(options)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func getDocument(this js.Value, args []js.Value) interface{} {
	if session == nil {
		return errorResult(errNoSession)
	}
	snap, err := session.Document().Export()
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(snap))
}
