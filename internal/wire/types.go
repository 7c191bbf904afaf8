// Package wire defines the Request/Reply/Call/Outcome/Effect tagged unions
// exchanged between rimecmd clients and the rimecmd server, plus the
// length-agnostic JSON framing used to read them off a stream.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is the envelope a client sends to the server.
type Request struct {
	ID   string `json:"id"`
	Call Call   `json:"call"`
}

// Reply is the envelope the server sends back. ID is null on protocol-level
// errors so the client cannot correlate it to a request it never made sense
// of.
type Reply struct {
	ID      *string `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// ErrorID is the closed set of wire-visible error identifiers.
type ErrorID string

const (
	ErrUnsupportedInput  ErrorID = "unsupported_input"
	ErrMoreThanOneClient ErrorID = "more_than_one_client"
	ErrJSON              ErrorID = "json_error"
	ErrIO                ErrorID = "io_error"
	ErrOptionNotFound    ErrorID = "option_not_found"
	ErrConfigNotFound    ErrorID = "config_not_found"
)

// Candidate is one entry of a Menu.
type Candidate struct {
	Text    string `json:"text"`
	Comment string `json:"comment,omitempty"`
}

// Menu mirrors the engine's candidate page for the current composition.
type Menu struct {
	Candidates              []Candidate `json:"candidates"`
	PageNo                  int         `json:"page_no"`
	HighlightedCandidateIdx int         `json:"highlighted_candidate_index"`
	IsLastPage              bool        `json:"is_last_page"`
}

// Composition is the pre-commit editable text plus its selection range and
// cursor offset. All offsets are byte offsets into Preedit.
type Composition struct {
	Length    int    `json:"length"`
	CursorPos int    `json:"cursor_pos"`
	SelStart  int    `json:"sel_start"`
	SelEnd    int    `json:"sel_end"`
	Preedit   string `json:"preedit"`
}

// Call is the externally tagged ("method"/"params") union of client requests.
type Call struct {
	Method CallMethod
	// Exactly one of the following is populated, selected by Method.
	ProcessKey *ProcessKeyParams
	ConfigValueInteger *ConfigValueIntegerParams
}

type CallMethod string

const (
	CallProcessKey         CallMethod = "process_key"
	CallSchemaName         CallMethod = "schema_name"
	CallConfigValueInteger CallMethod = "config_value_integer"
	CallClearComposition   CallMethod = "clear_composition"
	CallStopClient         CallMethod = "stop_client"
	CallStopServer         CallMethod = "stop_server"
)

// ProcessKeyParams carries an X11-style keysym and modifier mask.
type ProcessKeyParams struct {
	Keycode uint32 `json:"keycode"`
	Mask    uint32 `json:"mask"`
}

// ConfigValueIntegerParams identifies a read-only config lookup.
type ConfigValueIntegerParams struct {
	ConfigID  string `json:"config_id"`
	OptionKey string `json:"option_key"`
}

type callWire struct {
	Method CallMethod       `json:"method"`
	Params *json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON encodes Call as {"method": "...", "params": {...}}, omitting
// params for payload-less calls.
func (c Call) MarshalJSON() ([]byte, error) {
	w := callWire{Method: c.Method}
	var params any
	switch c.Method {
	case CallProcessKey:
		params = c.ProcessKey
	case CallConfigValueInteger:
		params = c.ConfigValueInteger
	case CallSchemaName, CallClearComposition, CallStopClient, CallStopServer:
		params = nil
	default:
		return nil, fmt.Errorf("wire: unknown call method %q", c.Method)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		w.Params = &rm
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a Call, rejecting unknown methods and unknown
// fields within params.
func (c *Call) UnmarshalJSON(data []byte) error {
	var w callWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	c.Method = w.Method
	c.ProcessKey = nil
	c.ConfigValueInteger = nil
	switch w.Method {
	case CallProcessKey:
		var p ProcessKeyParams
		if w.Params == nil {
			return fmt.Errorf("wire: process_key requires params")
		}
		if err := strictUnmarshal(*w.Params, &p); err != nil {
			return err
		}
		c.ProcessKey = &p
	case CallConfigValueInteger:
		var p ConfigValueIntegerParams
		if w.Params == nil {
			return fmt.Errorf("wire: config_value_integer requires params")
		}
		if err := strictUnmarshal(*w.Params, &p); err != nil {
			return err
		}
		c.ConfigValueInteger = &p
	case CallSchemaName, CallClearComposition, CallStopClient, CallStopServer:
		// no params expected
	default:
		return fmt.Errorf("wire: unknown call method %q", w.Method)
	}
	return nil
}

// Outcome is the untagged-by-key union of reply payloads: each variant has
// a distinct JSON key, so decoding dispatches on which key is present.
type Outcome struct {
	Effect             *Effect
	Error              *OutcomeError
	SchemaName         *string
	ConfigValueInteger *int
}

// OutcomeError carries a protocol-level error back to the client.
type OutcomeError struct {
	ID      ErrorID `json:"id"`
	Message string  `json:"message"`
}

// Effect is the union of engine-triggered side effects delivered in a
// successful reply.
type Effect struct {
	CommitString *string
	UpdateUI     *UpdateUI
	StopClient   bool
	StopServer   bool
}

// UpdateUI carries a fresh composition+menu snapshot to render.
type UpdateUI struct {
	Composition Composition `json:"composition"`
	Menu        Menu        `json:"menu"`
}

type effectWire struct {
	CommitString *string   `json:"commit_string,omitempty"`
	UpdateUI     *UpdateUI `json:"update_ui,omitempty"`
	StopClient   *struct{} `json:"stop_client,omitempty"`
	StopServer   *struct{} `json:"stop_server,omitempty"`
}

func (e Effect) MarshalJSON() ([]byte, error) {
	var w effectWire
	switch {
	case e.CommitString != nil:
		w.CommitString = e.CommitString
	case e.UpdateUI != nil:
		w.UpdateUI = e.UpdateUI
	case e.StopClient:
		w.StopClient = &struct{}{}
	case e.StopServer:
		w.StopServer = &struct{}{}
	default:
		return nil, fmt.Errorf("wire: empty effect")
	}
	return json.Marshal(w)
}

func (e *Effect) UnmarshalJSON(data []byte) error {
	var w effectWire
	if err := strictUnmarshal(data, &w); err != nil {
		return err
	}
	*e = Effect{}
	switch {
	case w.CommitString != nil:
		e.CommitString = w.CommitString
	case w.UpdateUI != nil:
		e.UpdateUI = w.UpdateUI
	case w.StopClient != nil:
		e.StopClient = true
	case w.StopServer != nil:
		e.StopServer = true
	default:
		return fmt.Errorf("wire: outcome effect has no recognized key")
	}
	return nil
}

type outcomeWire struct {
	Effect             *Effect       `json:"effect,omitempty"`
	Error              *OutcomeError `json:"error,omitempty"`
	SchemaName         *string       `json:"schema_name,omitempty"`
	ConfigValueInteger *int          `json:"config_value_integer,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	var w outcomeWire
	switch {
	case o.Effect != nil:
		w.Effect = o.Effect
	case o.Error != nil:
		w.Error = o.Error
	case o.SchemaName != nil:
		w.SchemaName = o.SchemaName
	case o.ConfigValueInteger != nil:
		w.ConfigValueInteger = o.ConfigValueInteger
	default:
		return nil, fmt.Errorf("wire: empty outcome")
	}
	return json.Marshal(w)
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var w outcomeWire
	if err := strictUnmarshal(data, &w); err != nil {
		return err
	}
	*o = Outcome{}
	switch {
	case w.Effect != nil:
		o.Effect = w.Effect
	case w.Error != nil:
		o.Error = w.Error
	case w.SchemaName != nil:
		o.SchemaName = w.SchemaName
	case w.ConfigValueInteger != nil:
		o.ConfigValueInteger = w.ConfigValueInteger
	default:
		return fmt.Errorf("wire: outcome has no recognized key")
	}
	return nil
}

// strictUnmarshal decodes data into v, rejecting unknown fields the way
// Rust's #[serde(deny_unknown_fields)] does on Call/Reply/Request.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
