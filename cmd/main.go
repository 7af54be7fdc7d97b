package main

import (
	"LinkGrab/internal"
	"LinkGrab/internal/scanner"
	"LinkGrab/internal/ui"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func scanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "File type to look for (see 'types')",
			Value:   "pdf",
			EnvVars: []string{"LINKGRAB_TYPE"},
		},
		&cli.StringFlag{
			Name:    "engine",
			Usage:   "How the page is loaded: http (static fetch) or browser (headless Chromium)",
			Value:   "http",
			EnvVars: []string{"LINKGRAB_ENGINE"},
		},
		&cli.IntFlag{
			Name:  "frame-depth",
			Usage: "Max iframe nesting followed by the http engine",
			Value: 3,
		},
		&cli.IntFlag{
			Name:  "threads",
			Usage: "Concurrent frame fetches per nesting level",
			Value: 4,
		},
		&cli.DurationFlag{
			Name:    "page-timeout",
			Usage:   "Timeout for a single page, frame or download request",
			Value:   30 * time.Second,
			EnvVars: []string{"LINKGRAB_PAGE_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "rate-limit",
			Usage:   "Requests per second per host (0 - unlimited)",
			Value:   0,
			EnvVars: []string{"LINKGRAB_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:  "max-page-mb",
			Usage: "Max size of a fetched page or frame",
			Value: 10,
		},
		&cli.BoolFlag{
			Name:  "install-browser",
			Usage: "Download the playwright driver and Chromium before scanning",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the file list as an HTML checklist to this path",
		},
	}
}

func main() {
	app := &cli.App{
		Name:      "LinkGrab",
		Usage:     "Find file links on a page and its frames, then download the ones you pick",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "logfile",
				Usage:   "Write logs into file instead of stderr",
				EnvVars: []string{"LINKGRAB_LOGFILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "warn",
				EnvVars: []string{"LINKGRAB_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "lang",
				Usage:   "Status message language: " + strings.Join(internal.Languages(), ", "),
				Value:   "en",
				EnvVars: []string{"LINKGRAB_LANG"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Global timeout (e.g. 5m); 0 - none",
			},
			&cli.StringFlag{
				Name:    "types-file",
				Usage:   "Extra file types, one 'name: regex | mime,mime' per line",
				EnvVars: []string{"LINKGRAB_TYPES_FILE"},
			},
			&cli.IntFlag{
				Name:    "max-downloads",
				Usage:   "Max files per download batch",
				Value:   50,
				EnvVars: []string{"LINKGRAB_MAX_DOWNLOADS"},
			},
			&cli.DurationFlag{
				Name:    "delay",
				Usage:   "Pause between download submissions",
				Value:   500 * time.Millisecond,
				EnvVars: []string{"LINKGRAB_DELAY"},
			},
			&cli.IntFlag{
				Name:  "max-name",
				Usage: "Max filename length",
				Value: 50,
			},
			&cli.StringSliceFlag{
				Name:  "schemes",
				Usage: "Allowed URL schemes",
				Value: cli.NewStringSlice("http", "https"),
			},
			&cli.StringSliceFlag{
				Name:  "block",
				Usage: "Additional blocked extensions (comma separated, without dot)",
			},
		},
		Before: func(c *cli.Context) error {
			internal.InitLogger(c.String("logfile"), c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "types",
				Usage: "List the known file types",
				Action: func(c *cli.Context) error {
					cfg, err := buildConfig(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					for _, name := range cfg.TypeNames() {
						rule := cfg.FileTypes[name]
						fmt.Printf("%-6s %-40s %s\n", name, rule.Pattern, strings.Join(rule.MIME, ", "))
					}
					return nil
				},
			},
			{
				Name:      "scan",
				Usage:     "List matching files on the page",
				ArgsUsage: "URL",
				Flags:     scanFlags(),
				Action: func(c *cli.Context) error {
					return run(c, false)
				},
			},
			{
				Name:      "get",
				Usage:     "Scan the page, select files and download them",
				ArgsUsage: "URL",
				Flags: append(scanFlags(),
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Download folder",
						Value:   "downloads",
						EnvVars: []string{"LINKGRAB_OUT"},
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent transfers in the download manager",
						Value: 3,
					},
					&cli.StringFlag{
						Name:  "select",
						Usage: "Files to download by number, e.g. 1,3-5",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Select every listed file",
					},
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Pick files with the keyboard",
					},
				),
				Action: func(c *cli.Context) error {
					return run(c, true)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func buildConfig(c *cli.Context) (*internal.SecurityConfig, error) {
	cfg := internal.DefaultSecurityConfig()
	cfg.MaxDownloads = c.Int("max-downloads")
	cfg.DownloadDelay = c.Duration("delay")
	cfg.MaxFilenameLength = c.Int("max-name")
	cfg.AllowedSchemes = c.StringSlice("schemes")
	for _, v := range c.StringSlice("block") {
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				cfg.BlockedExtensions = append(cfg.BlockedExtensions, ext)
			}
		}
	}
	if path := c.String("types-file"); path != "" {
		rules, err := internal.LoadFileTypes(path)
		if err != nil {
			return nil, err
		}
		for name, rule := range rules {
			cfg.FileTypes[name] = rule
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Prepare()
	return cfg, nil
}

func openHost(c *cli.Context, client *internal.Client, pageURL string) (scanner.TabHost, func(), error) {
	switch c.String("engine") {
	case "http":
		return internal.NewHTTPHost(client, pageURL, c.Int("frame-depth"), c.Int("threads")), func() {}, nil
	case "browser":
		b, err := internal.NewBrowserHost(pageURL, c.Duration("page-timeout"), c.Bool("install-browser"))
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				logrus.WithError(err).Warn("could not stop browser")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine %q (use http or browser)", c.String("engine"))
	}
}

func run(c *cli.Context, download bool) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one page URL is required", 1)
	}
	pageURL := c.Args().First()

	cfg, err := buildConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// ctx with timeout + OS signals
	base := context.Background()
	var cancel context.CancelFunc
	if t := c.Duration("timeout"); t > 0 {
		base, cancel = context.WithTimeout(base, t)
	} else {
		base, cancel = context.WithCancel(base)
	}
	defer cancel()
	ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var stats internal.AppStats
	stats.Start()

	client := internal.NewClient(c.Duration("page-timeout"), c.Int("rate-limit"), c.Int("max-page-mb"))
	host, closeHost, err := openHost(c, client, pageURL)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeHost()

	var (
		dl  scanner.Downloader = rejectDownloads{}
		mgr *internal.DownloadManager
	)
	if download {
		mgr, err = internal.NewDownloadManager(ctx, client, c.String("out"), c.Int("workers"), cfg.MaxFilenameLength, &stats)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer mgr.Close()
		dl = mgr
	}

	printer := ui.NewStatusPrinter(os.Stdout)
	var bar *ui.Progress
	orch := internal.NewOrchestrator(cfg, host, dl)
	orch.SetLocalizer(internal.NewLocalizer(c.String("lang")))
	orch.SetStats(&stats)
	orch.SetStatusCallback(func(st internal.Status) {
		// the bar shows per-file progress
		if bar != nil && st.Kind == internal.StatusInfo {
			return
		}
		printer.Print(st)
	})
	orch.SetSubmitCallback(func(i, total int, u string) {
		if bar != nil {
			bar.Step(internal.SanitizeFilename(internal.FilenameFromURL(u), cfg.MaxFilenameLength))
		}
	})

	logrus.WithFields(logrus.Fields{"url": pageURL, "type": c.String("type"), "engine": c.String("engine")}).Info("LinkGrab started")
	res, err := orch.Scan(ctx, c.String("type"))
	if err != nil {
		if errors.Is(err, internal.ErrUnknownFileType) {
			return cli.Exit(err.Error(), 1)
		}
		// status line already shows the failure
		return cli.Exit("", 1)
	}
	if orch.Phase() != internal.PhaseListed {
		return writeReport(c, orch, res, &stats)
	}

	if !download {
		ui.PrintChecklist(os.Stdout, orch.Checklist())
		return writeReport(c, orch, res, &stats)
	}

	if err := applySelection(c, orch); err != nil {
		if errors.Is(err, ui.ErrCancelled) {
			fmt.Println(err)
			return nil
		}
		return cli.Exit(err.Error(), 1)
	}
	if err := writeReport(c, orch, res, &stats); err != nil {
		return err
	}

	if n, total := orch.Stats(); n > 0 && n <= cfg.MaxDownloads {
		fmt.Println(orch.SelectionText())
		bar = ui.NewProgress(os.Stderr, n, fmt.Sprintf("submitting %d of %d", n, total))
	}
	err = orch.Download(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if ctx.Err() != nil {
			logrus.Warn("Download cancelled")
			return cli.Exit("cancelled", 130)
		}
		// status line already explains selection errors
		return cli.Exit("", 1)
	}

	logrus.Info("Waiting for submitted downloads")
	mgr.Wait()

	fmt.Printf(
		"\n======= Finished in %s =======\nFrames scanned: %d (failed %d)\nFiles listed: %d (dropped %d)\nSubmitted: %d\nCompleted: %d\nFailed: %d\n",
		stats.Elapsed().Round(time.Millisecond), stats.FramesScanned.Load(), stats.FramesFailed.Load(),
		stats.Candidates.Load(), stats.Dropped.Load(),
		stats.Submitted.Load(), stats.Completed.Load(), stats.DownloadFailures.Load(),
	)
	return nil
}

func applySelection(c *cli.Context, orch *internal.Orchestrator) error {
	if c.Bool("all") {
		orch.ToggleAll()
	}
	if spec := c.String("select"); spec != "" {
		idx, err := internal.ParseSelection(spec, len(orch.Candidates()))
		if err != nil {
			return err
		}
		for _, i := range idx {
			if err := orch.SetSelected(i, true); err != nil {
				return err
			}
		}
	}
	if !c.Bool("interactive") {
		ui.PrintChecklist(os.Stdout, orch.Checklist())
		return nil
	}
	keys, restore, err := ui.OpenTerminalKeys()
	if err != nil {
		return fmt.Errorf("interactive mode needs a terminal: %w", err)
	}
	defer restore()
	return ui.RunChecklist(os.Stdout, keys, orch)
}

func writeReport(c *cli.Context, orch *internal.Orchestrator, res internal.ScanResult, stats *internal.AppStats) error {
	path := c.String("report")
	if path == "" {
		return nil
	}
	err := internal.WriteReport(path, internal.ReportInput{
		PageURL:  res.Tab.URL,
		FileType: res.FileType,
		Status:   orch.Status(),
		Stats: fmt.Sprintf("%s | frames: %d (failed %d) | dropped: %d",
			orch.SelectionText(), stats.FramesScanned.Load(), stats.FramesFailed.Load(), res.Dropped),
		Items: orch.Checklist(),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("write report: %v", err), 1)
	}
	logrus.WithField("path", path).Info("report written")
	return nil
}

// rejectDownloads backs the scan command, which never downloads.
type rejectDownloads struct{}

func (rejectDownloads) Submit(context.Context, scanner.DownloadRequest) error {
	return errors.New("downloads are disabled for scan")
}
