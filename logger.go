package scopecache

// Fields carries structured log attributes.
type Fields map[string]any

// Logger is the leveled logger the cache writes to. Adapters for slog, zap,
// logrus, zerolog, logr and ctxd live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything. Used when Options.Logger is nil.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

func keyFields(k Key) Fields {
	return Fields{"tag": k.Tag(), "key": k.String()}
}
