package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/media-sensitivity-detector/internal/app"
	"github.com/fpang/media-sensitivity-detector/internal/cli"
	"github.com/fpang/media-sensitivity-detector/internal/config"
	"github.com/fpang/media-sensitivity-detector/internal/detect"
	"github.com/fpang/media-sensitivity-detector/internal/logging"
)

// CLI flags
var (
	thresholdFlag     float64
	pornThresholdFlag float64
	videoFlag         bool
	pickFlag          bool
	jsonFlag          bool
	logLevelFlag      string
)

var rootCmd = &cobra.Command{
	Use:   "media-detect [path|url]",
	Short: "Check whether an image or video is sensitive",
	Long: `Media Detect classifies a local file, an http(s) URL or an s3:// object and
prints whether it is sensitive or pornographic.

The classifier is selected with CLASSIFIER_BACKEND (remote or gemini) and the
other environment variables the web service reads.

Examples:
  media-detect photo.jpg
  media-detect --video clip.mp4
  media-detect --json https://example.test/files/image.webp
  media-detect --threshold 0.4 --porn-threshold 0.6 s3://bucket/upload.png
  media-detect --pick
  media-detect  # Interactive mode - prompts for a path or URL`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().Float64Var(&thresholdFlag, "threshold", detect.DefaultSensitiveThreshold, "Probability above which an image is sensitive")
	rootCmd.Flags().Float64Var(&pornThresholdFlag, "porn-threshold", detect.DefaultSensitiveThresholdForPorn, "Probability above which an image is porn")
	rootCmd.Flags().BoolVar(&videoFlag, "video", false, "Analyze videos by sampling decoded frames")
	rootCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the file with the native file dialog")
	rootCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the verdict as JSON")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or warn)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	logging.Init()
	switch {
	case logLevelFlag != "":
		logging.SetLevel(logLevelFlag)
	case os.Getenv("LOG_LEVEL") == "":
		logging.SetLevel("warn")
	}

	src, err := chooseSource(args)
	if err != nil {
		if errors.Is(err, cli.ErrPickCanceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "No file selected.")
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	if err := a.Load(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: classifier unavailable (%v); results will be not sensitive\n", err)
	}

	params := detect.Params{
		SensitiveThreshold:        thresholdFlag,
		SensitiveThresholdForPorn: pornThresholdFlag,
		AnalyzeVideo:              videoFlag,
	}

	log.Info().
		Str("source", src.String()).
		Bool("remote", src.IsRemote()).
		Msg("Starting detection")

	start := time.Now()
	var res detect.Result
	if src.IsRemote() {
		res, err = a.DetectURL(ctx, src.URL, params)
	} else {
		res, err = a.DetectFile(ctx, src.Path, params)
	}
	if err != nil {
		return err
	}

	verdict := cli.NewVerdict(src, res, time.Since(start))
	if jsonFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}
	fmt.Fprint(cmd.OutOrStdout(), cli.FormatVerdict(verdict))
	return nil
}

// chooseSource resolves the positional argument, the file dialog, or an
// interactive prompt, in that order.
func chooseSource(args []string) (cli.Source, error) {
	var arg string
	switch {
	case len(args) == 1:
		arg = args[0]
	case pickFlag:
		path, err := cli.PickMediaFile()
		if err != nil {
			return cli.Source{}, err
		}
		arg = path
	default:
		arg = cli.PromptForSource(os.Stdin, os.Stderr)
	}
	return cli.ResolveSource(arg)
}
