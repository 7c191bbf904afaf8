// Package engine wraps the native CJK input-method engine behind a
// thread-safe handle, grounded on original_source/src/rime_api/mod.rs: a
// cgo binding against a thin C shim (see shim.h) rather than the engine's
// own versioned C API, matching the Rust original's choice to link a
// private "rimed" static library.
package engine

/*
#cgo LDFLAGS: -lrimed
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"rimecmd/internal/wire"
)

// LogLevel selects the engine's own log verbosity, passed only at first
// initialization (the engine ignores later changes; see Get).
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelWarning
	LogLevelError
	LogLevelFatal
	LogLevelNone
)

// Engine is the process-wide, mutex-guarded handle onto the native engine.
// All cgo calls through it hold mu for the duration of the call plus
// copying results out of C memory, per spec.md §4.1/§5.
type Engine struct {
	mu  sync.Mutex
	api *C.CRimeApi
}

var (
	singleton     *Engine
	singletonOnce sync.Once
)

// Get returns the process-wide Engine, initializing it on first call with
// the given directories and log level. Subsequent calls return the same
// instance; userDataDir, sharedDataDir and level are then ignored, which is
// an engine limitation documented in spec.md §4.1, not a bug in this
// adapter.
func Get(userDataDir, sharedDataDir string, level LogLevel) *Engine {
	singletonOnce.Do(func() {
		singleton = newEngine(userDataDir, sharedDataDir, level)
	})
	return singleton
}

func newEngine(userDataDir, sharedDataDir string, level LogLevel) *Engine {
	cUserDataDir := C.CString(userDataDir)
	defer C.free(unsafe.Pointer(cUserDataDir))
	cSharedDataDir := C.CString(sharedDataDir)
	defer C.free(unsafe.Pointer(cSharedDataDir))

	api := C.c_create_rime_api(cUserDataDir, cSharedDataDir, C.int(level))
	return &Engine{api: api}
}

// Close tears down the native engine. Only meaningful at process exit; the
// engine is a process-wide singleton for the lifetime of the program.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.c_destory_rime_api(e.api)
	e.api = nil
}

// UserDataDir reports the directory the engine resolved at init.
func (e *Engine) UserDataDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return C.GoString(C.c_get_user_data_dir(e.api))
}

// SharedDataDir reports the shared (read-only) data directory the engine
// resolved at init.
func (e *Engine) SharedDataDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return C.GoString(C.c_get_shared_data_dir(e.api))
}

// Schema names one entry of the engine's schema list.
type Schema struct {
	ID   string
	Name string
}

// SchemaList enumerates the schemas the engine has loaded. No wire Call
// exposes it, and --print-config does not report it.
func (e *Engine) SchemaList() []Schema {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cList C.CRimeSchemaList
	C.c_get_schema_list(e.api, &cList)
	defer C.c_free_schema_list(e.api, &cList)

	n := int(cList.size)
	if n == 0 || cList.list == nil {
		return nil
	}
	items := unsafe.Slice(cList.list, n)
	schemas := make([]Schema, n)
	for i, item := range items {
		schemas[i] = Schema{
			ID:   C.GoString(item.schema_id),
			Name: C.GoString(item.name),
		}
	}
	return schemas
}

// Session is a per-connection handle into the engine, created on client
// connect and destroyed on disconnect (spec.md §3).
type Session struct {
	engine *Engine
	id     C.size_t
}

// NewSession creates a fresh engine session.
func NewSession(e *Engine) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Session{engine: e, id: C.c_create_session(e.api)}
}

// Close destroys the session. Safe to call once per Session.
func (s *Session) Close() {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	C.c_destory_session(s.engine.api, s.id)
}

// ProcessKey feeds one keysym+mask pair to the engine. The returned bool
// reports whether the engine consumed the key (spec.md §4.1).
func (s *Session) ProcessKey(keycode, mask uint32) bool {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return C.c_process_key(s.engine.api, s.id, C.int(keycode), C.int(mask)) == 1
}

// ClearComposition resets the session's edit buffer.
func (s *Session) ClearComposition() {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	C.c_clear_composition(s.engine.api, s.id)
}

// CurrentSchema returns the active schema's id.
func (s *Session) CurrentSchema() string {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	buf := make([]C.char, 1024)
	if C.c_get_current_schema(s.engine.api, s.id, &buf[0], C.size_t(len(buf))) == 0 {
		panic("engine: c_get_current_schema failed; the engine is documented to always succeed once a session exists")
	}
	return C.GoString(&buf[0])
}

// Commit is the engine's pending committed text, if any.
type Commit struct {
	Text string
	Has  bool
}

// GetCommit drains the session's pending commit text.
func (s *Session) GetCommit() Commit {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	var c C.CRimedRimeCommit
	C.c_get_commit(s.engine.api, s.id, &c)
	defer C.c_free_commit(&c)

	if c.text == nil {
		return Commit{}
	}
	return Commit{Text: C.GoString(c.text), Has: true}
}

// GetContext translates the engine's current context into the wire
// Composition/Menu shapes.
func (s *Session) GetContext() (wire.Composition, wire.Menu) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	var c C.CRimedRimeContext
	C.c_get_context(s.engine.api, s.id, &c)
	defer C.c_free_context(&c)

	composition := wire.Composition{
		Length:    int(c.length),
		CursorPos: int(c.cursor_pos),
		SelStart:  int(c.sel_start),
		SelEnd:    int(c.sel_end),
	}
	if c.preedit != nil {
		composition.Preedit = C.GoString(c.preedit)
	}

	menu := wire.Menu{
		PageNo:                  int(c.menu.page_no),
		HighlightedCandidateIdx: int(c.menu.highlighted_candidate_index),
		IsLastPage:              c.menu.is_last_page == 1,
	}
	n := int(c.menu.num_candidates)
	if n > 0 && c.menu.candidates != nil {
		cCandidates := unsafe.Slice(c.menu.candidates, n)
		menu.Candidates = make([]wire.Candidate, n)
		for i, cc := range cCandidates {
			cand := wire.Candidate{Text: C.GoString(cc.text)}
			if cc.comment != nil {
				cand.Comment = C.GoString(cc.comment)
			}
			menu.Candidates[i] = cand
		}
	}

	return composition, menu
}

// Status mirrors CRimedRimeStatus. The wire schema_name call is answered
// from Session.CurrentSchema, not from this struct.
type Status struct {
	SchemaID      string
	SchemaName    string
	IsDisabled    bool
	IsComposing   bool
	IsASCIIMode   bool
	IsFullShape   bool
	IsSimplified  bool
	IsTraditional bool
	IsASCIIPunct  bool
}

// GetStatus reads the session's current engine status.
func (s *Session) GetStatus() Status {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	var c C.CRimedRimeStatus
	C.c_get_status(s.engine.api, s.id, &c)
	defer C.c_free_status(&c)

	if c.schema_id == nil || c.schema_name == nil {
		panic("engine: c_get_status returned a null schema id/name; the engine is documented to emit UTF-8 and never null here")
	}

	return Status{
		SchemaID:      C.GoString(c.schema_id),
		SchemaName:    C.GoString(c.schema_name),
		IsDisabled:    c.is_disabled == 1,
		IsComposing:   c.is_composing == 1,
		IsASCIIMode:   c.is_ascii_mode == 1,
		IsFullShape:   c.is_full_shape == 1,
		IsSimplified:  c.is_simplified == 1,
		IsTraditional: c.is_traditional == 1,
		IsASCIIPunct:  c.is_ascii_punct == 1,
	}
}

// GetConfigValueInteger reads a read-only integer config value. It returns
// *wire.ConfigNotFoundError or *wire.OptionNotFoundError on lookup failure,
// mirroring original_source/src/rime_api/mod.rs's Result<int, ...> surface
// via the Go error idiom instead.
func (s *Session) GetConfigValueInteger(configID, optionKey string) (int, error) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	cConfigID := C.CString(configID)
	defer C.free(unsafe.Pointer(cConfigID))
	cKey := C.CString(optionKey)
	defer C.free(unsafe.Pointer(cKey))

	var out C.int
	switch C.c_get_config_value_int(s.engine.api, cConfigID, cKey, &out) {
	case 1:
		return int(out), nil
	case 0:
		return 0, &wire.OptionNotFoundError{ConfigID: configID, OptionKey: optionKey}
	default:
		return 0, &wire.ConfigNotFoundError{ConfigID: configID}
	}
}
