// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command mediamanagerd runs the media manager REST API server.
//
//     mediamanagerd [options] <port>
//
// The API is served under /v0, notifications over WebSocket at
// /notifications, and Prometheus metrics at /metrics.  With
// --config, settings are read from a YAML file; command-line flags
// override it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/diffeo/go-mediamanager/backend"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

// Config holds the daemon's settings, as read from a YAML file.
type Config struct {
	Backend  string `yaml:"backend"`
	Cache    bool   `yaml:"cache"`
	DBName   string `yaml:"dbname"`
	DBHost   string `yaml:"dbhost"`
	DBPort   int    `yaml:"dbport"`
	LogLevel string `yaml:"log_level"`
	Port     int    `yaml:"port"`
}

// defaultConfig matches the command-line defaults.
func defaultConfig() Config {
	return Config{
		Backend:  "memory",
		DBName:   "plm-media-manager",
		DBHost:   "localhost",
		DBPort:   5432,
		LogLevel: "info",
	}
}

func loadConfigYaml(filename string, config *Config) error {
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, config)
	}
	return err
}

// applyFlags overrides a configuration with every flag that was
// given on the command line.
func applyFlags(c *cli.Context, config *Config) error {
	if c.IsSet("backend") {
		config.Backend = c.String("backend")
	}
	if c.IsSet("cache") {
		config.Cache = c.Bool("cache")
	}
	if c.IsSet("dbname") {
		config.DBName = c.String("dbname")
	}
	if c.IsSet("dbhost") {
		config.DBHost = c.String("dbhost")
	}
	if c.IsSet("dbport") {
		config.DBPort = c.Int("dbport")
	}
	if c.IsSet("log-level") {
		config.LogLevel = c.String("log-level")
	}
	switch c.NArg() {
	case 0:
	case 1:
		port, err := strconv.Atoi(c.Args().First())
		if err != nil {
			return fmt.Errorf("invalid port %q", c.Args().First())
		}
		config.Port = port
	default:
		return errors.New("expected a single port argument")
	}
	return nil
}

// newBackend builds the storage backend description.  A "postgres"
// backend with no address connects to the configured database host.
func newBackend(config Config, log logrus.FieldLogger) (*backend.Backend, error) {
	b := &backend.Backend{Cache: config.Cache, Log: log}
	if err := b.Set(config.Backend); err != nil {
		return nil, err
	}
	if b.Implementation == "postgres" && b.Address == "" {
		b.Address = "//" + net.JoinHostPort(config.DBHost, strconv.Itoa(config.DBPort)) + "/" + config.DBName
	}
	return b, nil
}

func run(c *cli.Context) error {
	config := defaultConfig()
	if filename := c.String("config"); filename != "" {
		if err := loadConfigYaml(filename, &config); err != nil {
			return fmt.Errorf("could not load YAML configuration: %v", err)
		}
	}
	if err := applyFlags(c, &config); err != nil {
		cli.ShowAppHelp(c)
		return err
	}
	if config.Port == 0 {
		cli.ShowAppHelp(c)
		return errors.New("a port is required")
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return err
	}
	logger := logrus.StandardLogger()
	logger.SetLevel(level)
	log := logger.WithField("server", "mediamanagerd")

	b, err := newBackend(config, log)
	if err != nil {
		return err
	}
	service, err := b.Service()
	if err != nil {
		return fmt.Errorf("could not create media manager backend: %v", err)
	}
	defer b.Close()

	handler, shutdown, err := NewHandler(service, logger, log)
	if err != nil {
		return err
	}
	defer shutdown()

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Port),
		Handler: handler,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	log.WithFields(logrus.Fields{
		"port":    config.Port,
		"backend": b.String(),
	}).Info("media manager started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err = <-errs:
		return err
	case sig := <-signals:
		log.WithField("signal", sig.String()).Info("shutting down")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func main() {
	app := cli.NewApp()
	app.Name = "mediamanagerd"
	app.Usage = "serve the media manager API over HTTP"
	app.ArgsUsage = "<port>"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "read settings from this YAML file",
		},
		cli.StringFlag{
			Name:  "backend",
			Value: "memory",
			Usage: "impl[:address] of the storage backend",
		},
		cli.BoolFlag{
			Name:  "cache",
			Usage: "cache documents in front of the backend",
		},
		cli.StringFlag{
			Name:  "dbname, d",
			Value: "plm-media-manager",
			Usage: "database name",
		},
		cli.StringFlag{
			Name:  "dbhost",
			Value: "localhost",
			Usage: "database host",
		},
		cli.IntFlag{
			Name:  "dbport, p",
			Value: 5432,
			Usage: "database port number",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "minimum level of log messages",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("media manager failed")
	}
}
