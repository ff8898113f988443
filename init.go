package dinex

import (
	"flag"

	"github.com/sirupsen/logrus"
)

var logLevel = flag.String("log_level", "info", "logging level: debug, info, warn or error")

// Init sets up the dinex package
func Init() {
	flag.Parse()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	config.Load()
}
