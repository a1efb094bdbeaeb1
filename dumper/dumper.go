// Package dumper provides an optional event-dumping sink a Control may
// attach for diagnostics.
package dumper

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Dumper receives a textual rendering (the event type) of each signalling
// event a Control's GetEvent takes from its calls. This is strictly a logging-oriented dump, not a
// wire-format capture.
type Dumper interface {
	Dump(line string)
	Close() error
}

// LogDumper writes dumped lines through a component logger, grounded on the
// same writer-hook shape logging.go uses for console/file fan-out.
type LogDumper struct {
	log *logrus.Entry
}

// NewLogDumper returns a Dumper that writes every line at Debug level.
func NewLogDumper(log *logrus.Entry) *LogDumper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogDumper{log: log.WithField("sink", "dumper")}
}

func (d *LogDumper) Dump(line string) { d.log.Debug(line) }
func (d *LogDumper) Close() error     { return nil }

// WriterDumper writes dumped lines to an arbitrary io.Writer, one per line.
type WriterDumper struct {
	w io.Writer
}

func NewWriterDumper(w io.Writer) *WriterDumper { return &WriterDumper{w: w} }

func (d *WriterDumper) Dump(line string) { fmt.Fprintln(d.w, line) }
func (d *WriterDumper) Close() error {
	if c, ok := d.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
