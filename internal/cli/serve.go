package cmd

/*
serve stands up the §6 HTTP/WebSocket API: POST /api/crawl/add-site accepts
seed URLs at runtime, so unlike the root command, serve
itself needs no --seed-url. internal/config.Config.Build still rejects an
empty seed list (it is shared with the root command's config path), so serve seeds
it with a single placeholder that is never dereferenced: every real session's
seed arrives later, per request, through internal/sessionmgr.Manager.StartCrawl.
*/

import (
	"fmt"
	"net/url"
	"os"

	"github.com/rohmanhakim/docs-crawler/internal/app"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/spf13/cobra"
)

// placeholderSeedURL satisfies Config.Build's non-empty-seedURLs invariant
// for a process that accepts its real seeds over HTTP instead of at startup.
const placeholderSeedURL = "http://localhost/"

var (
	servePort          int
	serveBadgerDataDir string
	serveMaxSessions   int
	serveBrowserlessUrl string
	serveIndexerUrl     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server for on-demand, multi-session crawling.",
	Long: `serve starts the docs-crawler HTTP/WebSocket API: POST /api/crawl/add-site
to start a crawl, GET /api/crawl/status to poll it, GET /crawl-logs for a
live log stream, and GET /api/search to query the configured search indexer.

Unlike the root command, which only loads and prints its configuration, serve accepts seed URLs at request
time and can run several crawl sessions concurrently, up to CRAWL_MAX_SESSIONS.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port (0: use PORT env var or the default)")
	serveCmd.Flags().StringVar(&serveBadgerDataDir, "badger-data-dir", "", "badger data directory (default: data/badger)")
	serveCmd.Flags().IntVar(&serveMaxSessions, "max-sessions", 0, "maximum concurrent crawl sessions (0: default)")
	serveCmd.Flags().StringVar(&serveBrowserlessUrl, "browserless-url", "", "Browserless endpoint for SPA rendering (empty: fall back to in-process chromedp)")
	serveCmd.Flags().StringVar(&serveIndexerUrl, "indexer-url", "", "search indexer base URL backing GET /api/search")
}

// buildServeConfig applies the serve-specific flags on top of either a config
// file (shared with the root command's --config-file flag) or config.WithDefault's
// placeholder seed, mirroring InitConfigWithError's file-vs-flags split.
func buildServeConfig() (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("serve: load config file: %w", err)
		}
		cfg, err = config.WithEnvOverrides(cfg)
		if err != nil {
			return config.Config{}, fmt.Errorf("serve: apply environment overrides: %w", err)
		}
		return cfg, nil
	}

	placeholder, err := url.Parse(placeholderSeedURL)
	if err != nil {
		return config.Config{}, fmt.Errorf("serve: parse placeholder seed url: %w", err)
	}

	builder := config.WithDefault([]url.URL{*placeholder})
	if servePort > 0 {
		builder = builder.WithHttpPort(servePort)
	}
	if serveBadgerDataDir != "" {
		builder = builder.WithBadgerDataDir(serveBadgerDataDir)
	}
	if serveMaxSessions > 0 {
		builder = builder.WithMaxConcurrentSessions(serveMaxSessions)
	}
	if serveBrowserlessUrl != "" {
		builder = builder.WithBrowserlessUrl(serveBrowserlessUrl).WithSpaRenderingEnabled(true)
	}
	if serveIndexerUrl != "" {
		builder = builder.WithIndexerUrl(serveIndexerUrl)
	}

	cfg, err := builder.Build()
	if err != nil {
		return config.Config{}, fmt.Errorf("serve: build config: %w", err)
	}

	cfg, err = config.WithEnvOverrides(cfg)
	if err != nil {
		return config.Config{}, fmt.Errorf("serve: apply environment overrides: %w", err)
	}
	return cfg, nil
}

func resetServeFlags() {
	servePort = 0
	serveBadgerDataDir = ""
	serveMaxSessions = 0
	serveBrowserlessUrl = ""
	serveIndexerUrl = ""
}

// Test helper functions to set serve flag values from tests.
func SetServePortForTest(port int) {
	servePort = port
}

func SetServeBadgerDataDirForTest(dir string) {
	serveBadgerDataDir = dir
}

func SetServeMaxSessionsForTest(max int) {
	serveMaxSessions = max
}

func SetServeBrowserlessUrlForTest(urlStr string) {
	serveBrowserlessUrl = urlStr
}

func SetServeIndexerUrlForTest(urlStr string) {
	serveIndexerUrl = urlStr
}

// BuildServeConfigForTest exposes buildServeConfig to internal/cli's test
// package so serve's config assembly can be checked without starting a
// server.
func BuildServeConfigForTest() (config.Config, error) {
	return buildServeConfig()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := buildServeConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer application.Close()

	fmt.Fprintf(os.Stdout, "docs-crawler serve listening on :%d (badger data dir: %s, max sessions: %d)\n",
		cfg.HttpPort(), cfg.BadgerDataDir(), cfg.MaxConcurrentSessions())

	return application.ListenAndServe()
}
