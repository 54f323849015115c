package mcp

// LoggingLevel is a syslog severity name. Sessions filter the log
// notifications pushed to them by a threshold level.
type LoggingLevel string

const (
	LoggingLevelDebug     LoggingLevel = "debug"
	LoggingLevelInfo      LoggingLevel = "info"
	LoggingLevelNotice    LoggingLevel = "notice"
	LoggingLevelWarning   LoggingLevel = "warning"
	LoggingLevelError     LoggingLevel = "error"
	LoggingLevelCritical  LoggingLevel = "critical"
	LoggingLevelAlert     LoggingLevel = "alert"
	LoggingLevelEmergency LoggingLevel = "emergency"
)

var severity = map[LoggingLevel]int{
	LoggingLevelDebug:     0,
	LoggingLevelInfo:      1,
	LoggingLevelNotice:    2,
	LoggingLevelWarning:   3,
	LoggingLevelError:     4,
	LoggingLevelCritical:  5,
	LoggingLevelAlert:     6,
	LoggingLevelEmergency: 7,
}

func IsValidLoggingLevel(level LoggingLevel) bool {
	_, ok := severity[level]
	return ok
}

// Enables reports whether a message at level msg passes a threshold of l.
func (l LoggingLevel) Enables(msg LoggingLevel) bool {
	return severity[msg] >= severity[l]
}

type SetLevelRequest struct {
	Level LoggingLevel `json:"level"`
}

// LoggingMessageNotification is the payload of notifications/message. Logger
// names the tool that produced it.
type LoggingMessageNotification struct {
	Level  LoggingLevel `json:"level"`
	Data   any          `json:"data"`
	Logger string       `json:"logger,omitzero"`
}
