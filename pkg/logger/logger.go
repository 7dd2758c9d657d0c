// Package logger wraps logrus with the fields the claim engine logs on:
// claim and user ids, request ids taken from the context, and a small set of
// typed events (claim, redemption, payment, security, api request) that log
// pipelines filter on through the "type" field.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// ContextKey is the type of the request-scoped values WithContext picks up.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
)

type Config struct {
	Level      LogLevel `json:"level"`
	Format     string   `json:"format"` // json or text
	Output     string   `json:"output"` // stdout, stderr or a file path
	TimeFormat string   `json:"time_format"`
	Caller     bool     `json:"caller"`
	AppName    string   `json:"app_name"`
	Version    string   `json:"version"`
}

// Logger is immutable; the With methods return a derived copy.
type Logger struct {
	entry *logrus.Entry
}

func NewLogger(config *Config) (*Logger, error) {
	out, err := openOutput(config.Output)
	if err != nil {
		return nil, err
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(parseLevel(config.Level))
	base.SetReportCaller(config.Caller)

	timeFormat := config.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	if config.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timeFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{TimestampFormat: timeFormat, FullTimestamp: true})
	}

	entry := logrus.NewEntry(base)
	if config.AppName != "" {
		entry = entry.WithField("app", config.AppName)
	}
	if config.Version != "" {
		entry = entry.WithField("version", config.Version)
	}
	return &Logger{entry: entry}, nil
}

// NewNop discards everything.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

func parseLevel(level LogLevel) logrus.Level {
	parsed, err := logrus.ParseLevel(string(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) WithClaimID(claimID primitive.ObjectID) *Logger {
	return l.WithField("claim_id", claimID.Hex())
}

func (l *Logger) WithUserID(userID primitive.ObjectID) *Logger {
	return l.WithField("user_id", userID.Hex())
}

// WithContext adds the request and user ids stored by the HTTP middleware.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := make(map[string]interface{}, 2)
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		fields["request_id"] = id
	}
	switch id := ctx.Value(UserIDKey).(type) {
	case primitive.ObjectID:
		fields["user_id"] = id.Hex()
	case string:
		fields["user_id"] = id
	}
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields)
}

func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }
func (l *Logger) Fatal(msg string) { l.entry.Fatal(msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) event(kind string, fields, extra map[string]interface{}) *Logger {
	fields["type"] = kind
	for k, v := range extra {
		fields[k] = v
	}
	return l.WithFields(fields)
}

func (l *Logger) LogClaimEvent(claimID primitive.ObjectID, event string, details map[string]interface{}) {
	l.event("claim_event", map[string]interface{}{"claim_id": claimID.Hex(), "event": event}, details).
		Info("Claim event")
}

// LogRedemptionEvent records every scan outcome, rejected ones included.
func (l *Logger) LogRedemptionEvent(claimID primitive.ObjectID, outcome string, details map[string]interface{}) {
	l.event("redemption_event", map[string]interface{}{"claim_id": claimID.Hex(), "outcome": outcome}, details).
		Info("Redemption attempt")
}

func (l *Logger) LogPaymentEvent(provider, event, reference string, amount float64, currency string) {
	fields := map[string]interface{}{"provider": provider, "event": event, "reference": reference, "amount": amount}
	if currency != "" {
		fields["currency"] = currency
	}
	l.event("payment_event", fields, nil).Info("Payment event")
}

func (l *Logger) LogAPIRequest(method, endpoint string, statusCode int, duration time.Duration, userID *primitive.ObjectID) {
	fields := map[string]interface{}{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}
	if userID != nil {
		fields["user_id"] = userID.Hex()
	}
	log := l.event("api_request", fields, nil)
	if statusCode >= 500 {
		log.Error("API request failed")
		return
	}
	log.Info("API request")
}

// LogSecurityEvent logs high and critical severities at error level.
func (l *Logger) LogSecurityEvent(eventType, severity string, details map[string]interface{}) {
	log := l.event("security_event", map[string]interface{}{"event_type": eventType, "severity": severity}, details)
	if severity == "high" || severity == "critical" {
		log.Error("Security event")
		return
	}
	log.Warn("Security event")
}
