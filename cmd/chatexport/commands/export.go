package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chatexport/lib/browser"
	"chatexport/lib/configutil"
	"chatexport/lib/restyutil"
	"chatexport/lib/scrapers/chatgpt/api"
	"chatexport/lib/serviceutil"
	"chatexport/lib/telemetry"
	"chatexport/services/export"
	"chatexport/services/export/archive"

	"github.com/spf13/cobra"
)

var exportOutput *string

func init() {
	exportOutput = exportCmd.Flags().String("output", "", "Override the output path from the config.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--output <path/to/export.json>]",
	Short: "Exports every conversation of the logged-in account to a json document.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		tel, err := telemetry.SetupFromEnv(ctx, "chatexport")
		if err != nil {
			serviceutil.Fatal("failed to set up telemetry", err)
		}
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)

		if *verbose {
			api.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/chatgpt"))
		}

		cfg, err := configutil.ReadConfig[export.Config]("config.json5")
		if os.IsNotExist(err) {
			slog.Info("no config.json5 found, running with defaults")
		} else if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = cfg.WithDefaults()
		if *exportOutput != "" {
			cfg.Output = *exportOutput
		}

		profileDir, err := cfg.Profile.Dir()
		if err != nil {
			serviceutil.Fatal("failed to resolve the browser profile", err)
		}
		slog.Info("starting browser", "profile_dir", profileDir, "headless", cfg.Headless)

		session, err := browser.NewSession(ctx, browser.SessionOptions{
			ProfileDir: profileDir,
			Headless:   cfg.Headless,
		})
		if err != nil {
			serviceutil.Fatal("failed to start the browser", err)
		}
		defer session.Close()

		var arch *archive.Archive
		if cfg.ArchiveDb != "" {
			arch, err = archive.Open(cfg.ArchiveDb)
			if err != nil {
				serviceutil.Fatal("failed to open the archive db", err)
			}
			defer arch.Close()
		}

		service := export.NewService(export.Options{
			Page:    session,
			Archive: arch,
			Config:  cfg,
			DirectRunner: func(ctx context.Context) (api.Runner, error) {
				cookies, err := session.Cookies(ctx)
				if err != nil {
					return nil, err
				}
				return api.NewHTTPRunner(cfg.BaseUrl, cookies)
			},
		})

		t1 := time.Now()
		doc, err := service.Run(ctx)
		if err != nil {
			serviceutil.Fatal("export failed", err)
		}
		slog.Info("export time", "seconds", time.Since(t1).Seconds())

		err = export.WriteDocument(cfg.Output, doc)
		if err != nil {
			serviceutil.Fatal("failed to write the export document", err)
		}
		export.PrintSummary(doc, cfg.Output)
	},
}
