package client

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFilename is the default log file of the client.
const LogFilename = "kbc.log"

// Dump returns a human readable dump of v.
func Dump(v any) string {
	return litter.Sdump(v)
}

// NewLogger returns a new well configured logger.
// Entries are written to filename, rotated, and errors are also printed on stderr.
func NewLogger(filename string, level logrus.Level) *logrus.Logger {
	formatter := new(LogFormatter)

	log := logrus.New()
	log.SetLevel(level)
	log.SetOutput(io.Discard) // stdout & stderr to /dev/null
	log.SetFormatter(formatter)
	if filename != "" {
		log.Hooks.Add(&fileHook{
			rotate: &lumberjack.Logger{
				Filename:   filename,
				MaxSize:    20, // megabytes
				MaxBackups: 2,
				MaxAge:     10, //days
			},
			formatter: formatter,
		})
	}
	log.Hooks.Add(&stderrHook{formatter: formatter})

	return log
}

////////////////////
//                //
// Hooks          //
//                //
////////////////////

type fileHook struct {
	sync.Mutex
	rotate    io.Writer
	formatter logrus.Formatter
}

// Fire opens the file, writes to the file and closes the file.
// Whichever user is running the function needs write permissions to the file or directory if the file does not yet exist.
func (hook *fileHook) Fire(entry *logrus.Entry) error {
	hook.Lock()
	defer hook.Unlock()

	// use our formatter instead of entry.String()
	msg, err := hook.formatter.Format(entry)
	if err != nil {
		log.Println("failed to generate string for entry:", err)
		return err
	}

	_, err = hook.rotate.Write(msg)
	return err
}

// Levels returns configured log levels.
func (hook *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

type stderrHook struct {
	formatter logrus.Formatter
}

// Fire prints the entry on stderr.
func (hook *stderrHook) Fire(entry *logrus.Entry) error {
	msg, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = os.Stderr.Write(msg)
	return err
}

// Levels returns the levels printed on stderr.
func (hook *stderrHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

////////////////////
//                //
// Log formatter  //
//                //
////////////////////

// A LogFormatter formats entries as `[time] LEVEL: message (k=v, ...)`.
type LogFormatter struct{}

// Format implements Logrus formatter.
func (f *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	fields := ""
	if len(entry.Data) > 0 {
		fs := []string{}
		for k, v := range entry.Data {
			fs = append(fs, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(fs)
		fields = fmt.Sprintf(" (%s)", strings.Join(fs, ", "))
	}

	t := entry.Time
	if t.IsZero() {
		t = time.Now()
	}

	data := fmt.Sprintf("[%s] %+5s: %s%s\n",
		t.Format(time.RFC3339),
		strings.ToUpper(entry.Level.String()),
		entry.Message,
		fields,
	)
	return []byte(data), nil
}
