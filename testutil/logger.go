package testutil

import (
	"flag"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var (
	testLogFile   = ""
	testLogLevel  = "debug"
	testLogStderr = false
)

func init() {
	flag.StringVar(&testLogFile, "log-file", testLogFile, "log to `file` instead of the default")
	flag.StringVar(&testLogLevel, "log-level", testLogLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	flag.BoolVar(&testLogStderr, "log-stderr", testLogStderr, "log to standard error")
}

// SetupLogger sends the standard logger to file, unless overridden on the test command line,
// and returns it.
func SetupLogger(file string) *log.Logger {
	if !testLogStderr {
		if testLogFile != "" {
			file = testLogFile
		}
		err := os.MkdirAll(filepath.Dir(file), 0755)
		if err != nil {
			panic(err)
		}
		w, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			panic(err)
		}
		log.SetOutput(w)
		log.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(testLogLevel)
	if err != nil {
		panic(err)
	}
	log.SetLevel(lvl)

	log.WithFields(log.Fields{
		"pid":  os.Getpid(),
		"args": os.Args[1:],
	}).Info("tests starting")
	return log.StandardLogger()
}
