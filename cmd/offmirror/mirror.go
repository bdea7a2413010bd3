package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/offmirror/internal/config"
	"github.com/nao1215/offmirror/internal/crawler"
	"github.com/nao1215/offmirror/internal/fetcher"
	"github.com/nao1215/offmirror/internal/journal"
	"github.com/nao1215/offmirror/internal/log"
	"github.com/nao1215/offmirror/internal/model"
	"github.com/nao1215/offmirror/internal/report"
	"github.com/nao1215/offmirror/internal/robots"
	"github.com/nao1215/offmirror/internal/storage"
	"github.com/nao1215/offmirror/internal/transport"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url>",
		Short: "Download a website and rewrite its links for offline use",
		Long: `Mirror crawls a website starting at <url>, saves every page and asset it
finds under the output directory and rewrites links to relative paths.

Links inside the origin host are followed up to --depth hops. Links that
leave the host are followed up to --ext-depth hops; with the default of 0
they are rewritten but never downloaded.

Examples:
  # Mirror a site into ./mirror with four workers
  offmirror mirror -o mirror -j 4 https://example.com/

  # Only follow the documentation section, two levels deep
  offmirror mirror --depth 2 --visit-include '^https://example\.com/docs/' https://example.com/docs/

  # Save only images, but still walk every page to find them
  offmirror mirror --download-include '\.(png|jpe?g|gif|svg)$' https://example.com/

  # Basic auth for the origin and for a second host
  offmirror mirror --auth "alice secret" --auth "bob hunter2 cdn.example.com" https://example.com/

  # Mirror an onion service through an embedded Tor daemon
  offmirror mirror --tor http://exampleonionaddress.onion/

Per-host credentials, cookies and headers can also be stored in a
configuration file (see 'offmirror init').`,
		Args: cobra.ExactArgs(1),
		RunE: runMirrorCmd,
	}

	// Output
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory the mirror is written to")
	cmd.Flags().Bool("dry-run", false,
		"Crawl and rewrite without writing any file")
	cmd.Flags().String("report", "",
		"Write a Markdown run report to this file")

	// Crawl scope
	cmd.Flags().IntP("jobs", "j", config.DefaultJobs,
		"Number of concurrent downloads")
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum link hops inside the origin host (-1 for unlimited)")
	cmd.Flags().IntP("ext-depth", "e", config.DefaultExtDepth,
		"Maximum link hops outside the page's host (-1 for unlimited)")
	cmd.Flags().String("visit-include", config.DefaultInclude,
		"Follow only URLs matching this regular expression")
	cmd.Flags().String("visit-exclude", config.DefaultExclude,
		"Do not follow URLs matching this regular expression")
	cmd.Flags().String("download-include", config.DefaultInclude,
		"Save only URLs matching this regular expression")
	cmd.Flags().String("download-exclude", config.DefaultExclude,
		"Do not save URLs matching this regular expression")
	cmd.Flags().Bool("visit-filter-is-download-filter", false,
		"Use the download filters to decide which URLs to follow")
	cmd.Flags().Bool("respect-robots", false,
		"Skip URLs disallowed by robots.txt")

	// Requests
	cmd.Flags().IntP("tries", "t", config.DefaultTries,
		"Download attempts per URL")
	cmd.Flags().Var(newSecondsValue(0), "delay",
		"Pause of each worker after each download, in seconds or with a unit (2, 0.5, 250ms)")
	cmd.Flags().Var(newSecondsValue(0), "random-delay",
		"Maximum random pause added to --delay, in seconds or with a unit")
	cmd.Flags().Duration("retry-delay", 0,
		"Base of the linear backoff between download attempts")
	cmd.Flags().Float64("rate-limit", 0,
		"Maximum requests per second across all workers (0 for no limit)")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout of one request including its body")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum size of one response body in bytes")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().StringArrayP("auth", "a", nil,
		`Basic auth as "user password [host]"; host defaults to the origin (repeatable)`)
	cmd.Flags().Bool("continue-on-error", false,
		"Log failed downloads and keep going instead of stopping")

	// Transport
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Journal, config and logging
	cmd.Flags().Bool("no-journal", false,
		"Do not record the run in the journal")
	cmd.Flags().String("journal-dir", "",
		"Directory of the run journal (default: $XDG_DATA_HOME/offmirror)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .offmirror.yaml or $XDG_CONFIG_HOME/offmirror/config.yaml)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), log.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runMirror(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	if len(args) > 0 {
		cfg.Origin = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.Jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, err
	}
	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.ExtDepth, err = flags.GetInt("ext-depth"); err != nil {
		return nil, err
	}
	if cfg.VisitInclude, err = flags.GetString("visit-include"); err != nil {
		return nil, err
	}
	if cfg.VisitExclude, err = flags.GetString("visit-exclude"); err != nil {
		return nil, err
	}
	if cfg.DownloadInclude, err = flags.GetString("download-include"); err != nil {
		return nil, err
	}
	if cfg.DownloadExclude, err = flags.GetString("download-exclude"); err != nil {
		return nil, err
	}
	if cfg.VisitFilterIsDownloadFilter, err = flags.GetBool("visit-filter-is-download-filter"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("respect-robots"); err != nil {
		return nil, err
	}
	if cfg.Tries, err = flags.GetInt("tries"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.RandomDelay, err = flags.GetDuration("random-delay"); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = flags.GetDuration("retry-delay"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ContinueOnError, err = flags.GetBool("continue-on-error"); err != nil {
		return nil, err
	}
	if cfg.Insecure, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.NoJournal, err = flags.GetBool("no-journal"); err != nil {
		return nil, err
	}
	if cfg.JournalDir, err = flags.GetString("journal-dir"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}

	authValues, err := flags.GetStringArray("auth")
	if err != nil {
		return nil, err
	}
	if len(authValues) > 0 {
		origin, err := cfg.OriginURL()
		if err != nil {
			return nil, err
		}
		for _, v := range authValues {
			a, err := config.ParseAuth(v, origin.Host)
			if err != nil {
				return nil, err
			}
			cfg.Auth = append(cfg.Auth, a)
		}
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A missing file is an error
// only when its path was given explicitly.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// runMirror performs one crawl and records it.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	origin, err := cfg.OriginURL()
	if err != nil {
		return err
	}

	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	client, stop, err := newHTTPClient(ctx, cfg, origin, logger)
	if err != nil {
		return err
	}
	defer stop()

	policy, err := buildPolicy(cfg)
	if err != nil {
		return err
	}

	f := fetcher.New(client,
		fetcher.WithTries(cfg.Tries),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithCredentials(fetcherCredentials(cfg.Credentials(origin.Host))),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithRetryDelay(cfg.RetryDelay),
		fetcher.WithLogger(logger),
	)

	opts := []crawler.Option{
		crawler.WithJobs(cfg.Jobs),
		crawler.WithLogger(logger),
		crawler.WithRateLimit(cfg.RateLimit),
	}
	if cfg.RespectRobots {
		opts = append(opts, crawler.WithRobots(
			robots.NewAgent(client, cfg.UserAgent, robots.WithLogger(logger)),
		))
	}

	summary := model.RunSummary{
		ID:        journal.NewRunID(),
		Origin:    origin.String(),
		OutputDir: outputDir,
		StartedAt: time.Now(),
	}

	var j *journal.Journal
	if !cfg.NoJournal {
		j, err = journal.Open(cfg.JournalPath(), journal.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()

		if err := j.StartRun(ctx, summary); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		opts = append(opts, crawler.WithJournal(j, summary.ID))
		logger.Debug("journal opened", "path", j.Path(), "run", summary.ID)
	}

	logger.Info("starting mirror",
		"origin", summary.Origin,
		"output", outputDir,
		"jobs", cfg.Jobs,
		"depth", cfg.Depth,
		"extDepth", cfg.ExtDepth,
		"dryRun", cfg.DryRun,
	)

	engine := crawler.NewEngine(f, storage.NewDiskWriter(outputDir), policy, opts...)
	stats, runErr := engine.Run(ctx, origin)

	summary.FinishedAt = time.Now()
	summary.Queued = stats.Queued
	summary.Fetched = stats.Fetched
	summary.Saved = stats.Saved
	summary.Failed = stats.Failed
	summary.Skipped = stats.Skipped
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	// The run context may already be cancelled; bookkeeping still has to land.
	finishCtx := context.WithoutCancel(ctx)

	if j != nil {
		if err := j.FinishRun(finishCtx, summary); err != nil {
			logger.Error("failed to finish journal run", "run", summary.ID, "error", err)
		}
	}

	if cfg.ReportFile != "" {
		if err := writeReport(finishCtx, cfg.ReportFile, j, summary); err != nil {
			logger.Error("report failed", "file", cfg.ReportFile, "error", err)
		}
	}

	fmt.Fprintf(out, "%s: %d queued, %d fetched, %d saved, %d failed, %d skipped in %s\n",
		summary.Origin, stats.Queued, stats.Fetched, stats.Saved, stats.Failed, stats.Skipped,
		summary.Elapsed().Round(time.Millisecond))
	if j != nil {
		fmt.Fprintf(out, "run id: %s\n", summary.ID)
	}

	if runErr != nil {
		return fmt.Errorf("mirror of %s failed: %w", summary.Origin, runErr)
	}
	return nil
}

// newHTTPClient returns the client for the configured transport and a
// function that releases it.
func newHTTPClient(ctx context.Context, cfg *config.Config, origin *url.URL, logger *slog.Logger) (*http.Client, func(), error) {
	opts := transport.Options{
		Timeout:      cfg.Timeout,
		Insecure:     cfg.Insecure,
		ProxyAddress: cfg.ProxyAddress,
		Sites:        transportSites(cfg.SiteHeaders(origin.Host)),
	}

	if cfg.UseTor {
		return startEmbeddedTor(ctx, cfg, opts, logger)
	}

	if cfg.ProxyAddress != "" {
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Error())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	client, err := transport.NewHTTPClient(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, func() { client.CloseIdleConnections() }, nil
}

// startEmbeddedTor boots a private Tor daemon and returns a client routed
// through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, opts transport.Options, logger *slog.Logger) (*http.Client, func(), error) {
	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))

	logger.Info("starting embedded Tor daemon", "timeout", cfg.TorStartupTimeout)
	started := time.Now()
	if err := tor.Start(ctx); err != nil {
		return nil, nil, err
	}
	logger.Info("embedded Tor daemon ready",
		"socks", tor.SocksAddr(),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := tor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := tor.HTTPClient(opts)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	return client, stop, nil
}

// buildPolicy converts the crawl options of cfg.
func buildPolicy(cfg *config.Config) (crawler.Policy, error) {
	visit, err := crawler.NewFilter(cfg.VisitInclude, cfg.VisitExclude)
	if err != nil {
		return crawler.Policy{}, err
	}
	download, err := crawler.NewFilter(cfg.DownloadInclude, cfg.DownloadExclude)
	if err != nil {
		return crawler.Policy{}, err
	}

	policy := crawler.DefaultPolicy()
	policy.DepthLimit = cfg.Depth
	policy.ExternalDepthLimit = cfg.ExtDepth
	policy.Visit = visit
	policy.Download = download
	policy.VisitFilterIsDownloadFilter = cfg.VisitFilterIsDownloadFilter
	policy.ContinueOnError = cfg.ContinueOnError
	policy.DryRun = cfg.DryRun
	policy.Delay = cfg.Delay
	policy.RandomDelay = cfg.RandomDelay
	return policy, nil
}

func fetcherCredentials(auth map[string]config.Auth) map[string]fetcher.Credentials {
	creds := make(map[string]fetcher.Credentials, len(auth))
	for host, a := range auth {
		creds[host] = fetcher.Credentials{Username: a.Username, Password: a.Password}
	}
	return creds
}

func transportSites(sites map[string]config.SiteConfig) map[string]transport.SiteHeaders {
	result := make(map[string]transport.SiteHeaders, len(sites))
	for host, sc := range sites {
		result[host] = transport.SiteHeaders{Cookie: sc.Cookie, Headers: sc.Headers}
	}
	return result
}

// writeReport writes the Markdown report of a finished run. Page rows come
// from the journal; without one the report holds the counters only.
func writeReport(ctx context.Context, path string, j *journal.Journal, summary model.RunSummary) error {
	run := &report.Run{Summary: summary}
	if j != nil {
		pages, err := j.ListPages(ctx, summary.ID, journal.PageFilter{})
		if err != nil {
			return fmt.Errorf("failed to read run pages: %w", err)
		}
		run.Pages = pages
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := report.NewMarkdownWriter(file).WriteRun(run); err != nil {
		_ = file.Close() //nolint:errcheck // the write error is reported
		return err
	}
	return file.Close()
}
