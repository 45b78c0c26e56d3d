package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/journeyclient"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/localprogress"
)

const (
	defaultServer = "http://localhost:8080"
	stateDBName   = "journey.db"
	cookieFile    = "cookies.json"
)

type options struct {
	server   string
	stateDir string
	timeout  time.Duration
}

// session is one command's view of the journey: the persisted cookie jar,
// the SQLite-backed local record and the facade over both.
type session struct {
	journey *journeyclient.Journey
	jar     *fileJar
	storage *localprogress.SQLiteStorage
}

func (s *session) close() error {
	saveErr := s.jar.Save()
	closeErr := s.storage.Close()
	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "journeyctl",
		Short:         "Walk the Valentine's week journey from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("JOURNEY_SERVER", defaultServer), "progress service base URL")
	root.PersistentFlags().StringVar(&opts.stateDir, "state-dir", envOr("JOURNEY_STATE_DIR", defaultStateDir()), "directory for cookies and the local record")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newStatusCmd(opts),
		newCompleteCmd(opts),
		newCanAccessCmd(opts),
		newDaysCmd(),
	)
	return root
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	if err := os.MkdirAll(opts.stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	jar, err := openFileJar(filepath.Join(opts.stateDir, cookieFile), opts.server)
	if err != nil {
		return nil, err
	}
	storage, err := localprogress.OpenSQLite(ctx, filepath.Join(opts.stateDir, stateDBName))
	if err != nil {
		return nil, err
	}
	client := journeyclient.New(opts.server, jar)
	client.HTTPClient.Timeout = opts.timeout
	return &session{
		journey: journeyclient.NewJourney(client, localprogress.New(storage)),
		jar:     jar,
		storage: storage,
	}, nil
}

// withSession opens the state, runs fn and persists cookies afterwards.
func withSession(cmd *cobra.Command, opts *options, fn func(ctx context.Context, s *session) error) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, s)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".journey"
	}
	return filepath.Join(home, ".journey")
}
