package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// TraceHook adds trace_id and span_id to entries logged with a span in their context.
type TraceHook struct{}

func (TraceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (TraceHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(entry.Context)
	if sc.HasTraceID() {
		entry.Data["trace_id"] = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		entry.Data["span_id"] = sc.SpanID().String()
	}
	return nil
}

// NewLogger returns a JSON logger with the trace hook installed. An unparsable
// level falls back to info. The standard logger is configured the same way so
// package-level logrus calls share the format.
func NewLogger(level string) *logrus.Logger {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	configure := func(l *logrus.Logger) {
		l.SetOutput(os.Stdout)
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(lvl)
		l.AddHook(TraceHook{})
	}
	configure(logrus.StandardLogger())

	log := logrus.New()
	configure(log)
	return log
}
