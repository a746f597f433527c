package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kasblog/kasblog/internal/database"
	"github.com/kasblog/kasblog/internal/server"
	"github.com/kasblog/kasblog/internal/server/service"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const envPrefix = "KASBLOG_"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &cobra.Command{
		Use:     "kasblog",
		Short:   "Short URL service for Kaspa blog articles",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)
	c.AddCommand(serverCmd)
	c.AddCommand(sweepCmd)
	c.AddCommand(statsCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func load() (*koanf.Koanf, error) {
	konf := koanf.New(".")
	err := konf.Load(confmap.Provider(map[string]any{
		"address":                  "localhost:3001",
		"database.driver":          database.DriverSQLite,
		"database.path":            "kasblog.db",
		"short_url.ttl":            service.DefaultTTL.String(),
		"short_url.sweep_interval": service.DefaultSweepInterval.String(),
		"short_url.store_keys":     false,
		"short_url.body_limit":     server.DefaultBodyLimit,
		"log.level":                "info",
	}, "."), nil)
	if err != nil {
		return nil, err
	}

	if cfg != "" {
		if err = konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "could not load configuration file")
		}
	}

	// A missing .env is not an error.
	_ = godotenv.Load()

	// KASBLOG_SHORT_URL__TTL => short_url.ttl
	err = konf.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	return konf, errors.Wrap(err, "could not load environment")
}

func logger(konf *koanf.Koanf) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(konf.String("log.level"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if filename := konf.String("log.file"); filename != "" {
		l.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, //days
		}))
	}
	return l, nil
}

func open(konf *koanf.Koanf) (database.Client, error) {
	db, err := database.Open(konf.String("database.driver"), konf.String("database.path"))
	return db, errors.Wrap(err, "could not open database")
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			return database.Init(konf.String("database.driver"), konf.String("database.path"))
		},
	}

	//
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired short URLs",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}
			l, err := logger(konf)
			if err != nil {
				return err
			}

			db, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := service.NewSweeper(db, 0, l).Sweep()
			if err != nil {
				return err
			}
			fmt.Printf("%d expired short URLs removed\n", n)
			return nil
		},
	}

	//
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print short URL statistics",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			db, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.ShortURLStats(time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("total:  %d\n", stats.Total)
			fmt.Printf("active: %d\n", stats.Active)
			if stats.Oldest != nil {
				fmt.Printf("oldest: %s\n", stats.Oldest.Format(time.RFC3339))
				fmt.Printf("newest: %s\n", stats.Newest.Format(time.RFC3339))
			}
			return nil
		},
	}

	//
	//
	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}
			l, err := logger(konf)
			if err != nil {
				return err
			}

			db, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			origins := konf.Strings("cors.allowed_origins")
			if len(origins) == 0 && konf.String("public_origin") != "" {
				origins = []string{konf.String("public_origin")}
			}

			engine := server.EchoEngine(server.IOC{
				Version:        version,
				Database:       db,
				Logger:         l,
				ShortURLTTL:    konf.Duration("short_url.ttl"),
				StoreKeys:      konf.Bool("short_url.store_keys"),
				BodyLimit:      konf.String("short_url.body_limit"),
				AllowedOrigins: origins,
			})
			server.PrintRoutes(engine)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go service.NewSweeper(db, konf.Duration("short_url.sweep_interval"), l).Run(ctx)
			go func() {
				<-ctx.Done()

				shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := engine.Shutdown(shutdown); err != nil {
					l.WithError(err).Error("could not shutdown server")
				}
			}()

			address := konf.String("address")
			message := "could not run server"
			l.Infof("Server listening on %s", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					l.Infof("Removing existing %s", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				err = engine.Server.Serve(listener)
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return errors.Wrap(err, message)
			}

			err = engine.Start(address)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, message)
		},
	}
)
