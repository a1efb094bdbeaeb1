// Package logging sets up component loggers the same way
// D4rk4-tg2sip/go/logging.go does: one *logrus.Entry per component, a
// console writer hook and a rotated-file writer hook gated by independent
// minimum levels, built by a shared constructor.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/ini.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

// writerHook writes logs to the specified writer for the provided levels,
// mirroring the teacher's writerHook in logging.go exactly.
type writerHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.Writer.Write([]byte(line))
	return err
}

func (h *writerHook) Levels() []logrus.Level { return h.LogLevels }

func availableLevels(min logrus.Level) []logrus.Level {
	levels := []logrus.Level{}
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return levels
}

// New builds a component logger writing to stdout (colorized via the
// logrus-prefixed-formatter, which the teacher's module graph carried but
// never wired — DESIGN.md) and to a rotated file.
func New(name string, level, consoleMin, fileMin logrus.Level, file io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
		ForceColors:     true,
	})
	logger.AddHook(&writerHook{Writer: os.Stdout, LogLevels: availableLevels(consoleMin)})
	if file != nil {
		logger.AddHook(&writerHook{Writer: file, LogLevels: availableLevels(fileMin)})
	}
	return logger.WithField("name", name)
}

// Loggers holds one entry per core component.
type Loggers struct {
	Circuit    *logrus.Entry
	Group      *logrus.Entry
	Call       *logrus.Entry
	Control    *logrus.Entry
	AnalogLine *logrus.Entry

	file *lumberjack.Logger
}

// Init builds the component loggers from an ini section the way
// initLogging reads the teacher's "logging" section, with one minimum level
// per component plus shared console/file minimums.
func Init(sec *ini.Section, logPath string) *Loggers {
	consoleMin := logrus.Level(uint32(sec.Key("console_min_level").MustInt(2)))
	fileMin := logrus.Level(uint32(sec.Key("file_min_level").MustInt(1)))

	file := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100,
		MaxBackups: 3,
	}

	level := func(key string, def int) logrus.Level {
		return logrus.Level(uint32(sec.Key(key).MustInt(def)))
	}

	return &Loggers{
		Circuit:    New("circuit", level("circuit", 4), consoleMin, fileMin, file),
		Group:      New("group", level("group", 4), consoleMin, fileMin, file),
		Call:       New("call", level("call", 4), consoleMin, fileMin, file),
		Control:    New("control", level("control", 4), consoleMin, fileMin, file),
		AnalogLine: New("analogline", level("analogline", 4), consoleMin, fileMin, file),
		file:       file,
	}
}

// Close flushes and closes the rotated log file.
func (l *Loggers) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
