package docpipe

// Option configures an Engine
type Option func(e *Engine)

// WithLogger sets the logger executions are logged to
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSchema validates documents inserted into collection against the schema
func WithSchema(collection string, schema *JSONSchema) Option {
	return func(e *Engine) {
		e.schemas[collection] = schema
	}
}
