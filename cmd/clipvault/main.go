package main

import (
	"fmt"
	"hash"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"gopkg.in/natefinch/lumberjack.v2"

	"clipvault/internal/blob"
	"clipvault/internal/broadcast"
	"clipvault/internal/database"
	"clipvault/internal/server"
	"clipvault/internal/share"
)

const dbname = "clipvault.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "clipvault",
		Short:   "Personal clipboard sync and file sharing server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func konf() (*koanf.Koanf, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(map[string]interface{}{
		"address":              ":8087",
		"data_path":            "data",
		"auth.cookie_ttl":      "168h",
		"share.credential_ttl": "168h",
	}, "."), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not load default configuration")
	}

	if cfg != "" {
		if err := k.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "could not load configuration file")
		}
	}

	// CLIPVAULT_DATA_PATH overrides data_path, CLIPVAULT_AUTH_COOKIE_TTL
	// overrides auth.cookie_ttl and so on.
	err = k.Load(env.Provider("CLIPVAULT_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "CLIPVAULT_"))
		return strings.Replace(s, "_", ".", 1)
	}), nil)
	return k, errors.Wrap(err, "could not load environment configuration")
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func kdf(l int, k []byte) []byte {
	nhash := func() hash.Hash {
		h, err := blake2b.New256(nil)
		if err != nil {
			panic(err)
		}
		return h
	}

	payload := make([]byte, l)

	kdf := hkdf.New(nhash, k, nil, nil)
	_, err := io.ReadFull(kdf, payload)
	if err != nil {
		panic(err)
	}

	return payload
}

func logger(k *koanf.Koanf) *logrus.Logger {
	l := logrus.StandardLogger()
	if filename := k.String("log.file"); filename != "" {
		l.SetOutput(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
		})
	}
	return l
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			k, err := konf()
			if err != nil {
				return err
			}

			path := k.String("data_path")
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errors.Wrap(err, "could not create data directory")
			}

			return database.StormInit(dbnameWithPath(path))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			k, err := konf()
			if err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(k.String("data_path")))
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			k, err := konf()
			if err != nil {
				return err
			}

			if k.String("password") == "" {
				return errors.New("password not found")
			}

			if k.String("secret_key") == "" {
				return errors.New("secret_key not found")
			}

			log := logger(k)
			dataPath := k.String("data_path")

			db, err := database.StormOpen(dbnameWithPath(dataPath))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			blobs, err := blob.NewStore(dataPath, log)
			if err != nil {
				return errors.Wrap(err, "could not open blob store")
			}

			broker := broadcast.New()
			defer broker.Close()

			signingKey := kdf(32, k.MustBytes("secret_key"))

			engine := server.EchoEngine(server.IOC{
				Version:     version,
				Database:    db,
				Blobs:       blobs,
				Shares:      share.NewRegistry(db, signingKey, k.MustDuration("share.credential_ttl")),
				Broadcaster: broker,
				Logger:      log,
				Password:    k.String("password"),
				CookieKey:   signingKey,
				CookieTTL:   k.MustDuration("auth.cookie_ttl"),
			})
			server.PrintRoutes(engine)

			address := k.String("address")
			message := "could not run server"
			log.Printf("Server listening on %s\n", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)
