// Package logrusconfig sets up logrus with the prefixed text formatter and an
// optional -loglevel command line flag.
package logrusconfig

import (
	"flag"
	"fmt"
	"strconv"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

type levelValue struct {
	set   bool
	level logrus.Level
}

func (l *levelValue) String() string {
	return l.level.String()
}

// Set accepts a number from 0 (panic) to 6 (trace) or a level name.
func (l *levelValue) Set(s string) error {
	if n, err := strconv.Atoi(s); err == nil {
		if n < int(logrus.PanicLevel) || n > int(logrus.TraceLevel) {
			return fmt.Errorf("log level %d out of range", n)
		}
		l.level = logrus.Level(n)
	} else {
		level, err := logrus.ParseLevel(s)
		if err != nil {
			return err
		}
		l.level = level
	}

	l.set = true
	return nil
}

var loglevel levelValue

// InitParam registers the -loglevel flag. Call it before flag.Parse.
func InitParam() {
	loglevel.level = logrus.InfoLevel
	flag.Var(&loglevel, "loglevel", "The loglevel to use. Valid values are from 0 to 6 or a level name. Higher values output more information")
}

// GetLogger returns a logger using the prefixed formatter. The -loglevel flag
// overrides level when it was given.
func GetLogger(level logrus.Level) *logrus.Entry {
	logrus.ErrorKey = "$error"
	logger := logrus.New()
	if loglevel.set {
		logger.SetLevel(loglevel.level)
	} else {
		logger.SetLevel(level)
	}

	customFormatter := new(prefixed.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	customFormatter.PrefixPadding = 20
	customFormatter.SpacePadding = 50
	logger.SetFormatter(customFormatter)
	return logrus.NewEntry(logger)
}

// Subsystem returns an entry whose lines are prefixed with name.
func Subsystem(log *logrus.Entry, name string) *logrus.Entry {
	return log.WithField("prefix", name)
}
