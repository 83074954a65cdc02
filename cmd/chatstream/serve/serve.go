// Package servecmder provides the serve command that runs the development
// chat backend.
package servecmder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/api"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/storage"
	"github.com/papercomputeco/chatstream/pkg/storage/inmemory"
	"github.com/papercomputeco/chatstream/pkg/storage/sqlite"
)

type serveCommander struct {
	listen       string
	sqlitePath   string
	logFile      string
	token        string
	userID       string
	tokenDelayMS uint
	debug        bool

	logOut io.Writer
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagSQLite,
	config.FlagLogFile,
	config.FlagServerToken,
	config.FlagServerUserID,
	config.FlagTokenDelay,
}

const serveLongDesc string = `Run the development chat backend.

The backend stores chats in memory (or SQLite with --sqlite) and answers every
message by streaming it back token by token. A message starting with
"!error " is answered with an error event carrying the rest of the message,
which is handy for exercising client error handling.

Examples:
  chatstream serve
  chatstream serve --listen :9000 --sqlite ./chats.db --token dev-secret
  chatstream serve --log-file ./serve.log`

const serveShortDesc string = "Run the development chat backend"

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServerFlags, serveFlags)

			cfg := config.Unmarshal(v)
			cmder.listen = cfg.Server.Listen
			cmder.sqlitePath = cfg.Server.SQLitePath
			cmder.logFile = cfg.Server.LogFile
			cmder.token = cfg.Server.Token
			cmder.userID = cfg.Server.UserID
			cmder.tokenDelayMS = cfg.Server.TokenDelayMS
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logOut = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.ServerFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServerFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.ServerFlags, config.FlagLogFile, &cmder.logFile)
	config.AddStringFlag(cmd, config.ServerFlags, config.FlagServerToken, &cmder.token)
	config.AddStringFlag(cmd, config.ServerFlags, config.FlagServerUserID, &cmder.userID)
	config.AddUintFlag(cmd, config.ServerFlags, config.FlagTokenDelay, &cmder.tokenDelayMS)

	return cmd
}

func (c *serveCommander) run() error {
	l, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = l

	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.listen,
		Token:      c.token,
		UserID:     c.userID,
		TokenDelay: time.Duration(c.tokenDelayMS) * time.Millisecond,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if c.token == "" {
		c.logger.Warn("no server token configured, accepting any bearer token")
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// newLogger builds the pretty console logger and, with --log-file, fans records
// out to a JSON file as well. The returned func closes the file.
func (c *serveCommander) newLogger() (*slog.Logger, func() error, error) {
	out := c.logOut
	if out == nil {
		out = os.Stdout
	}
	pretty := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(out))
	if c.logFile == "" {
		return pretty, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(f),
	)
	return logger.Multi(pretty, file), f.Close, nil
}

func (c *serveCommander) newStorageDriver() (storage.Driver, error) {
	if c.sqlitePath != "" {
		driver, err := sqlite.NewDriver(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", c.sqlitePath)
		return driver, nil
	}

	c.logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}
