// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Command securecall runs the signaling switch and relay, or a complete
// call between two local parties over a simulated network.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pion/logging"
	"github.com/urfave/cli/v2"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "one of trace, debug, info, warn, error, disabled",
		Value:   "info",
		EnvVars: []string{"SECURECALL_LOG_LEVEL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to a YAML file overriding the call tunables",
		EnvVars: []string{"SECURECALL_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve Prometheus metrics on this address",
	},
}

func main() {
	app := &cli.App{
		Name:  "securecall",
		Usage: "secure voice call core",
		Flags: baseFlags,
		Commands: []*cli.Command{
			{
				Name:   "switch",
				Usage:  "run the signaling switch and media relay",
				Action: runSwitch,
				Flags:  switchFlags,
			},
			{
				Name:   "loopback",
				Usage:  "place a call between two local parties over a simulated lossy network",
				Action: runLoopback,
				Flags:  loopbackFlags,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseLogLevel(level string) (logging.LogLevel, error) {
	switch strings.ToLower(level) {
	case "trace":
		return logging.LogLevelTrace, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "error":
		return logging.LogLevelError, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	}

	return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", level)
}

func loggerFactory(c *cli.Context) (logging.LoggerFactory, error) {
	level, err := parseLogLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = level

	return lf, nil
}
