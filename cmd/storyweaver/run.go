package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyweaver/internal/cli"
	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/internal/presentation/tui"
	"github.com/aretw0/storyweaver/pkg/observability"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the story wizard in the terminal",
	Long: `Starts an interactive wizard session. Sessions are saved after every step
and can be resumed with --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool("debug")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		logger := cli.CreateLogger(debug, logging.Options{File: cfg.LogFile, JSON: jsonLogs})

		sessionID, _ := cmd.Flags().GetString("session")
		fresh, _ := cmd.Flags().GetBool("fresh")
		exportDir, _ := cmd.Flags().GetString("export-dir")

		svc, err := cli.NewStoryService(cfg, logger)
		if err != nil {
			return err
		}
		eng, err := cli.NewEngine(cfg, svc, logger, observability.LogHooks(logger))
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		mgr, closeStore, err := cli.NewSessionManager(ctx, cfg, cli.StoreFile, logger)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()

		opts := cli.RunOptions{
			SessionID:     sessionID,
			Fresh:         fresh,
			DefaultScenes: cfg.DefaultScenes,
			ExportDir:     exportDir,
			In:            os.Stdin,
			Out:           cmd.OutOrStdout(),
			Logger:        logger,
		}
		if cli.IsTerminal(os.Stdout) {
			opts.Banner = true
			opts.Render = tui.NewRenderer()
		}
		return cli.Run(ctx, eng, mgr, opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session ID to create or resume")
	runCmd.Flags().Bool("fresh", false, "Discard the saved session before starting")
	runCmd.Flags().String("export-dir", ".", "Directory the exported HTML is written to")

	// 'run' is the default when no command is provided.
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
