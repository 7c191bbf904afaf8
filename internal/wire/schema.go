package wire

// JSONSchema is a hand-rolled JSON Schema document, grounded on
// _examples/juicemix-atlassian-mcp-server's internal/domain.JSONSchema: a
// small struct covering exactly the shapes this module's wire types need,
// rather than a full external JSON-Schema library.
type JSONSchema struct {
	Type                 string                 `json:"type,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
	OneOf                []*JSONSchema          `json:"oneOf,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// RequestSchema describes the {"id","call"} envelope clients send.
func RequestSchema() *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Required:             []string{"id", "call"},
		AdditionalProperties: boolPtr(false),
		Properties: map[string]*JSONSchema{
			"id":   {Type: "string"},
			"call": CallSchema(),
		},
	}
}

// CallSchema describes the externally tagged Call union.
func CallSchema() *JSONSchema {
	processKey := &JSONSchema{
		Type:                 "object",
		AdditionalProperties: boolPtr(false),
		Required:             []string{"method", "params"},
		Properties: map[string]*JSONSchema{
			"method": {Type: "string", Enum: []string{string(CallProcessKey)}},
			"params": {
				Type:                 "object",
				AdditionalProperties: boolPtr(false),
				Required:             []string{"keycode", "mask"},
				Properties: map[string]*JSONSchema{
					"keycode": {Type: "integer"},
					"mask":    {Type: "integer"},
				},
			},
		},
	}
	configValueInteger := &JSONSchema{
		Type:                 "object",
		AdditionalProperties: boolPtr(false),
		Required:             []string{"method", "params"},
		Properties: map[string]*JSONSchema{
			"method": {Type: "string", Enum: []string{string(CallConfigValueInteger)}},
			"params": {
				Type:                 "object",
				AdditionalProperties: boolPtr(false),
				Required:             []string{"config_id", "option_key"},
				Properties: map[string]*JSONSchema{
					"config_id":  {Type: "string"},
					"option_key": {Type: "string"},
				},
			},
		},
	}
	noParams := func(method CallMethod) *JSONSchema {
		return &JSONSchema{
			Type:                 "object",
			AdditionalProperties: boolPtr(false),
			Required:             []string{"method"},
			Properties: map[string]*JSONSchema{
				"method": {Type: "string", Enum: []string{string(method)}},
			},
		}
	}
	return &JSONSchema{
		OneOf: []*JSONSchema{
			processKey,
			noParams(CallSchemaName),
			configValueInteger,
			noParams(CallClearComposition),
			noParams(CallStopClient),
			noParams(CallStopServer),
		},
	}
}

// ReplySchema describes the {"id","outcome"} envelope the server sends back.
func ReplySchema() *JSONSchema {
	effect := &JSONSchema{
		Type: "object",
		OneOf: []*JSONSchema{
			{Properties: map[string]*JSONSchema{"commit_string": {Type: "string"}}, Required: []string{"commit_string"}},
			{Properties: map[string]*JSONSchema{"update_ui": {Type: "object"}}, Required: []string{"update_ui"}},
			{Properties: map[string]*JSONSchema{"stop_client": {Type: "object"}}, Required: []string{"stop_client"}},
			{Properties: map[string]*JSONSchema{"stop_server": {Type: "object"}}, Required: []string{"stop_server"}},
		},
	}
	outcome := &JSONSchema{
		Type: "object",
		OneOf: []*JSONSchema{
			{Properties: map[string]*JSONSchema{"effect": effect}, Required: []string{"effect"}},
			{
				Properties: map[string]*JSONSchema{
					"error": {
						Type:     "object",
						Required: []string{"id", "message"},
						Properties: map[string]*JSONSchema{
							"id": {Type: "string", Enum: []string{
								string(ErrUnsupportedInput), string(ErrMoreThanOneClient),
								string(ErrJSON), string(ErrIO),
								string(ErrOptionNotFound), string(ErrConfigNotFound),
							}},
							"message": {Type: "string"},
						},
					},
				},
				Required: []string{"error"},
			},
			{Properties: map[string]*JSONSchema{"schema_name": {Type: "string"}}, Required: []string{"schema_name"}},
			{Properties: map[string]*JSONSchema{"config_value_integer": {Type: "integer"}}, Required: []string{"config_value_integer"}},
		},
	}
	return &JSONSchema{
		Type:     "object",
		Required: []string{"id", "outcome"},
		Properties: map[string]*JSONSchema{
			"id":      {OneOf: []*JSONSchema{{Type: "string"}, {Type: "null"}}},
			"outcome": outcome,
		},
	}
}
