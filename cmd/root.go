package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hostfetch/captcha"
	"hostfetch/downloader"
	"hostfetch/hoster"
	"hostfetch/internal"
	"hostfetch/utils"
)

var (
	outputDir      string
	cookiesPath    string
	linkPassword   string
	linkFile       string
	rateLimit      string
	quiet          bool
	proxyURL       string
	debug          bool
	logLevel       string
	logFile        string
	timeoutSecs    int
	maxRetries     int
	noExtraWait    bool
	fallbackDirect bool
	captchaMethod  string
	captchaProgram string
	config         *internal.Config

	exitCode int
)

var rootCmd = &cobra.Command{
	Use:     "hostfetch [OPTIONS] <URL>...",
	Short:   "Download files from one-click file-hosting sites",
	Version: "v1.0.0",
	Long: `HostFetch drives file-hosting ("one-click hoster") websites from the
command line: downloading files, probing links, listing folders, and
uploading or deleting files where the site module supports it. Retry
handling, wait budgets, and captcha solving are managed automatically.

Examples:
  hostfetch https://example-host.com/file/AbC123
  hostfetch -o /downloads --timeout 600 https://example-host.com/file/AbC123
  hostfetch --file links.txt --max-retries 3
  hostfetch --fallback https://cdn.example.com/direct/file.zip

Environment Variables:
  HOSTFETCH_TIMEOUT         Global wait budget in seconds
  HOSTFETCH_MAX_RETRIES     Retry cap per item
  HOSTFETCH_COOKIES         Path to Netscape cookie file
  HOSTFETCH_PROXY           Proxy URL
  HOSTFETCH_CAPTCHA_METHOD  Captcha method (none, prompt, antigate, deathbycaptcha, 9kw)
  HOSTFETCH_CAPTCHA_PROGRAM External captcha solver program
  HOSTFETCH_ANTIGATE_KEY    Antigate API key
  HOSTFETCH_DEATHBYCAPTCHA  DeathByCaptcha credentials (user:password)
  HOSTFETCH_9KW_KEY         9kw.eu API key

DISCLAIMER: Respect each hosting site's Terms of Service and copyright laws.`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(); err != nil {
			exitCode = int(internal.ErrBadCommandLine)
			return err
		}

		if err := internal.InitLogger(config); err != nil {
			exitCode = int(internal.ErrSystem)
			return err
		}

		internal.LogInfo("HostFetch starting up")
		internal.LogDebug("Configuration loaded: timeout=%d, maxRetries=%d, captchaMethod=%q, fallback=%v",
			config.Timeout, config.MaxRetries, config.CaptchaMethod, config.Fallback)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := collectItems(args)
		if err != nil {
			exitCode = int(internal.ErrBadCommandLine)
			return err
		}
		if len(items) == 0 {
			exitCode = int(internal.ErrBadCommandLine)
			return fmt.Errorf("no URLs given; pass them as arguments or via --file")
		}

		cmd.SilenceUsage = true
		batch := runDownloadBatch(items)
		exitCode = batch.ExitCode()

		if !quiet && len(batch.Items) > 1 {
			fmt.Printf("\n%d of %d items completed\n",
				len(batch.Items)-batch.Failed(), len(batch.Items))
		}
		return nil
	},
}

// collectItems merges positional URLs with the optional link file.
func collectItems(args []string) ([]string, error) {
	items := make([]string, 0, len(args))
	items = append(items, args...)

	if linkFile != "" {
		fromFile, err := utils.ReadLinkFile(linkFile)
		if err != nil {
			return nil, err
		}
		items = append(items, fromFile...)
	}

	for i, item := range items {
		items[i] = utils.NormalizeItemURL(item)
	}
	return items, nil
}

// runDownloadBatch processes items strictly one at a time. Each item gets a
// fresh ladder and wait budget; outcomes are collected into the batch result
// that determines the process exit code.
func runDownloadBatch(items []string) *downloader.BatchResult {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batch := &downloader.BatchResult{}

	env, err := buildEnvironment()
	if err != nil {
		// Environment construction failure poisons every item the same way.
		for _, item := range items {
			batch.Add(downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err})
		}
		internal.LogError("Setup failed: %v", err)
		return batch
	}

	for _, item := range items {
		if ctx.Err() != nil {
			batch.Add(downloader.ItemResult{
				URL:  item,
				Kind: internal.ErrSystem,
				Err:  internal.WrapHosterError(internal.ErrSystem, "interrupted", ctx.Err()),
			})
			continue
		}
		batch.Add(processItem(ctx, env, item))
	}

	if err := env.session.Persist(); err != nil {
		internal.LogWarn("Could not save cookie file: %v", err)
	}
	return batch
}

// environment bundles the long-lived collaborators shared across items.
type environment struct {
	client   *utils.HTTPClient
	session  *hoster.Session
	registry *hoster.Registry
	engine   *captcha.Engine
	transfer *downloader.Transfer
	direct   *hoster.Direct
}

func buildEnvironment() (*environment, error) {
	client := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:  time.Duration(config.HTTPTimeout) * time.Second,
		ProxyURL: config.ProxyURL,
	})

	session, err := hoster.NewSession(client, config.CookieFile, config.LinkPassword)
	if err != nil {
		return nil, err
	}

	engine, err := captcha.NewEngine(config, client)
	if err != nil {
		return nil, err
	}
	session.Captcha = engine
	internal.LogDebug("Captcha method: %s", engine.MethodName())

	var limiter internal.RateLimiter
	if rateLimit != "" {
		bytesPerSecond, err := parseRateLimit(rateLimit)
		if err != nil {
			return nil, internal.WrapHosterError(internal.ErrBadCommandLine,
				"invalid rate limit", err)
		}
		limiter = utils.NewTokenBucketLimiter(bytesPerSecond)
	}

	env := &environment{
		client:   client,
		session:  session,
		registry: hoster.NewRegistry(),
		engine:   engine,
		transfer: downloader.NewTransfer(client, limiter, config.QuietMode),
		direct:   hoster.NewDirect(),
	}
	registerModules(env)
	return env, nil
}

// registerModules installs the site modules. Site-specific modules register
// here in priority order; the direct module stays out of the registry so
// unknown sites still fail with NO_MODULE unless fallback is enabled.
func registerModules(env *environment) {
	// No bundled site modules yet; external module packages call
	// env.registry.Register from their own init paths. Each module reaches
	// the captcha engine through env.session.SolveCaptcha.
}

// processItem drives one URL end-to-end.
func processItem(ctx context.Context, env *environment, item string) downloader.ItemResult {
	internal.LogInfo("Processing %s", item)

	if err := utils.ValidateItemURL(item); err != nil {
		internal.LogAbort(item, err)
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	module, err := findDownloader(env, item)
	if err != nil {
		internal.LogAbort(item, err)
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	if !quiet {
		fmt.Printf("Downloading %s [%s]\n", item, module.Name())
	}

	ladder := downloader.NewLadder(config, env.transfer)
	path, err := ladder.Download(ctx, module, env.session, item, outputDir)
	if err != nil {
		internal.LogAbort(item, err)
		return downloader.ItemResult{URL: item, Kind: internal.KindOf(err), Err: err}
	}

	return downloader.ItemResult{URL: item, Path: path, Kind: internal.OK}
}

// findDownloader resolves the module for a URL, applying the direct-link
// fallback when enabled.
func findDownloader(env *environment, rawURL string) (hoster.Downloader, error) {
	module, err := env.registry.Find(rawURL)
	if err != nil {
		if config.Fallback && internal.IsKind(err, internal.ErrNoModule) {
			internal.LogDebug("No module for %s, using direct fallback", rawURL)
			return env.direct, nil
		}
		return nil, err
	}

	dl, ok := module.(hoster.Downloader)
	if !ok {
		return nil, internal.NewHosterError(internal.ErrFatal,
			fmt.Sprintf("module %s does not support downloads", module.Name()))
	}
	return dl, nil
}

// loadConfiguration loads environment configuration and merges CLI flags
// over it.
func loadConfiguration() error {
	config = internal.DefaultConfig()
	config.LoadFromEnv()

	if cookiesPath != "" {
		config.CookieFile = cookiesPath
	}
	if linkPassword != "" {
		config.LinkPassword = linkPassword
	}
	if proxyURL != "" {
		config.ProxyURL = proxyURL
	}
	if timeoutSecs != 0 {
		config.Timeout = timeoutSecs
	}
	if maxRetries != -1 {
		config.MaxRetries = maxRetries
	}
	if noExtraWait {
		config.NoExtraWait = true
	}
	if fallbackDirect {
		config.Fallback = true
	}
	if captchaMethod != "" {
		config.CaptchaMethod = captchaMethod
	}
	if captchaProgram != "" {
		config.CaptchaProgram = captchaProgram
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	return config.ValidateConfig()
}

// parseRateLimit converts strings like "5M" or "500K" to bytes per second.
func parseRateLimit(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty rate limit")
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'K':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'M':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case 'G':
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	var value int64
	if _, err := fmt.Sscanf(s, "%d", &value); err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid rate limit %q", s)
	}
	return value * multiplier, nil
}

func init() {
	config = internal.DefaultConfig()

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deleteCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cookiesPath, "cookies", "c", "", "Path to Netscape-format cookie file (env: HOSTFETCH_COOKIES)")
	pf.StringVarP(&linkPassword, "link-password", "p", "", "Password for protected links")
	pf.StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS proxy URL (env: HOSTFETCH_PROXY)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	pf.BoolVarP(&debug, "debug", "d", false, "Enable debug logging with file and line information (env: HOSTFETCH_DEBUG)")
	pf.StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: HOSTFETCH_LOG_LEVEL)")
	pf.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: HOSTFETCH_LOG_FILE)")
	pf.StringVar(&captchaMethod, "captcha-method", "", "Captcha method: none, prompt, antigate, deathbycaptcha, 9kw (env: HOSTFETCH_CAPTCHA_METHOD)")
	pf.StringVar(&captchaProgram, "captcha-program", "", "External captcha solver program (env: HOSTFETCH_CAPTCHA_PROGRAM)")

	f := rootCmd.Flags()
	f.StringVarP(&outputDir, "output", "o", "", "Output directory for downloaded files")
	f.StringVar(&linkFile, "file", "", "Read additional URLs from file, one per line")
	f.StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s)")
	f.IntVar(&timeoutSecs, "timeout", 0, "Global wait budget in seconds, 0 for unlimited (env: HOSTFETCH_TIMEOUT)")
	f.IntVar(&maxRetries, "max-retries", -1, "Retry cap per item: 0 disables retries, -1 for unlimited (env: HOSTFETCH_MAX_RETRIES)")
	f.BoolVar(&noExtraWait, "no-extra-wait", false, "Abort instead of waiting when a link is temporarily unavailable")
	f.BoolVar(&fallbackDirect, "fallback", false, "Treat URLs without a matching module as direct file links")
}

// Execute runs the CLI and returns the process exit code. Download batches
// encode their aggregate outcome; cobra-level errors map to the
// bad-command-line code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = int(internal.ErrBadCommandLine)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode
}
