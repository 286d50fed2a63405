package logging

import (
	"log"
	"os"
	"strings"
	"sync"
)

const (
	Critical = 50
	Fatal    = Critical
	Error    = 40
	Warning  = 30
	Info     = 20
	Debug    = 10
	NotSet   = 0
)

var (
	LogLevel      int = Warning
	logLevelMutex sync.Mutex
)

func init() {
	ConfigureFromEnv()
}

// ConfigureFromEnv applies LOCAL (true or 1 enables debug) and then
// LOG_LEVEL, which wins when set
func ConfigureFromEnv() {
	localEnv := os.Getenv("LOCAL")
	if strings.ToLower(localEnv) == "true" || localEnv == "1" {
		SetLogLevel(Debug)
	}
	if level, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		SetLogLevel(level)
	}
}

// ParseLevel maps a level name to its value
func ParseLevel(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "warn", "warning":
		return Warning, true
	case "error":
		return Error, true
	case "critical", "fatal":
		return Critical, true
	default:
		return NotSet, false
	}
}

func SetLogLevel(level int) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	LogLevel = level
}

// CurrentLevel returns the active level
func CurrentLevel() int {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	return LogLevel
}

func logf(level int, label, format string, v ...interface{}) {
	if CurrentLevel() <= level {
		log.Printf("["+label+"] "+format, v...)
	}
}

func Debugf(format string, v ...interface{}) {
	logf(Debug, "DEBUG", format, v...)
}

func Infof(format string, v ...interface{}) {
	logf(Info, "INFO", format, v...)
}

func Warningf(format string, v ...interface{}) {
	logf(Warning, "WARN", format, v...)
}

func Errorf(format string, v ...interface{}) {
	logf(Error, "ERROR", format, v...)
}

func Criticalf(format string, v ...interface{}) {
	logf(Critical, "CRITICAL", format, v...)
}

func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
