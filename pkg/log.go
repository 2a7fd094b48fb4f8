package pkg

import (
	"io"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// Component identifies a subsystem for log filtering.
type Component string

// Engine component identifiers.
const (
	ComponentDevice   Component = "device"
	ComponentBus      Component = "bus"
	ComponentPipe     Component = "pipe"
	ComponentClass    Component = "class"
	ComponentEndpoint Component = "endpoint"
)

// LogFormat specifies the output format for logging.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota // Text format (default)
	LogFormatJSON                  // JSON format
)

var (
	// DefaultLogger is the default logger used by the engine.
	DefaultLogger log.Interface = log.Log

	// logMutex protects logger configuration.
	logMutex sync.RWMutex
)

func init() {
	log.SetHandler(text.New(os.Stderr))
	log.SetLevel(log.InfoLevel)
}

// SetLogLevel sets the minimum level of apex/log's package-level logger,
// which is also the level NewLogger and NewJSONLogger copy into the
// loggers they create. A logger already installed with SetLogger keeps
// its own level.
func SetLogLevel(level log.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	log.SetLevel(level)
}

// GetLogLevel returns the current minimum log level.
func GetLogLevel() log.Level {
	return log.GetLevel()
}

// SetLogger replaces the default logger with a custom logger.
func SetLogger(logger log.Interface) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// SetLogFormat sets the handler of apex/log's package-level logger (the
// initial DefaultLogger) to the specified format, writing to os.Stderr.
// A logger installed with SetLogger is not affected.
func SetLogFormat(format LogFormat) {
	logMutex.Lock()
	defer logMutex.Unlock()
	switch format {
	case LogFormatJSON:
		log.SetHandler(json.New(os.Stderr))
	default:
		log.SetHandler(text.New(os.Stderr))
	}
}

// NewLogger creates a new text logger writing to the given writer.
func NewLogger(w io.Writer) log.Interface {
	return &log.Logger{Handler: text.New(w), Level: log.GetLevel()}
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) log.Interface {
	return &log.Logger{Handler: json.New(w), Level: log.GetLevel()}
}

func withComponent(component Component, args ...any) log.Interface {
	logMutex.RLock()
	logger := DefaultLogger
	logMutex.RUnlock()
	fields := log.Fields{"component": string(component)}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	return logger.WithFields(fields)
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	withComponent(component, args...).Debug(msg)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	withComponent(component, args...).Info(msg)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	withComponent(component, args...).Warn(msg)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	withComponent(component, args...).Error(msg)
}
