package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avern/wikiscribe/internal/audio"
	"github.com/avern/wikiscribe/internal/config"
	"github.com/avern/wikiscribe/internal/ffmpeg"
	"github.com/avern/wikiscribe/internal/lang"
	"github.com/avern/wikiscribe/internal/pipeline"
	"github.com/avern/wikiscribe/internal/server"
	"github.com/avern/wikiscribe/internal/summarize"
	"github.com/avern/wikiscribe/internal/transcribe"
	"github.com/avern/wikiscribe/internal/wiki"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitSetup     = 3
	ExitInterrupt = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:     "wikiscribe",
		Short:   "Extract, transcribe, summarize, and publish media to a wiki",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(
		extractCmd(),
		transcribeCmd(),
		generateCmd(),
		publishCmd(),
		runCmd(),
		serveCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
	os.Exit(ExitOK)
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	case errors.Is(err, ffmpeg.ErrNotFound):
		return ExitSetup
	default:
		return ExitGeneral
	}
}

// setup loads configuration, ensures the directory layout, and builds the
// logger shared by every stage.
func setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Dirs.EnsureDirs(); err != nil {
		return config.Config{}, nil, err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	return cfg, log, nil
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Extract audio tracks from videos in the videos directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			sum, err := runExtraction(cmd.Context(), cfg, log)
			return reportSummary(log, sum, err)
		},
	}
}

func transcribeCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe audio files in the audios directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if language != "" {
				cfg.Language = language
			}
			sum, err := runTranscription(cmd.Context(), cfg, log)
			return reportSummary(log, sum, err)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Audio language (ISO 639-1 code)")
	return cmd
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate markdown summaries from transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			sum, err := runGeneration(cmd.Context(), cfg, log, lang.NewDetector())
			return reportSummary(log, pipeline.Summary(sum), err)
		},
	}
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish generated markdown to the wiki",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			res, err := runPublishing(cmd.Context(), cfg, log, lang.NewDetector())
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"successful": res.Successful,
				"failed":     res.Failed,
			}).Info("publish finished")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: extract, transcribe, generate, publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			detector := lang.NewDetector()

			extSum, extErr := runExtraction(ctx, cfg, log)
			if err := reportSummary(log, extSum, extErr); err != nil {
				return err
			}
			trSum, trErr := runTranscription(ctx, cfg, log)
			if err := reportSummary(log, trSum, trErr); err != nil {
				return err
			}
			sum, err := runGeneration(ctx, cfg, log, detector)
			if err := reportSummary(log, pipeline.Summary(sum), err); err != nil {
				return err
			}
			_, err = runPublishing(ctx, cfg, log, detector)
			return err
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline stages over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			detector := lang.NewDetector()

			runners := server.Runners{
				ProcessVideos: func(ctx context.Context, _ server.StageRequest) (server.StageResult, error) {
					return stageResult(runExtraction(ctx, cfg, log))
				},
				TranscriptAudio: func(ctx context.Context, req server.StageRequest) (server.StageResult, error) {
					runCfg := cfg
					if req.Language != "" {
						runCfg.Language = req.Language
					}
					return stageResult(runTranscription(ctx, runCfg, log))
				},
				GenerateMarkdown: func(ctx context.Context, _ server.StageRequest) (server.StageResult, error) {
					sum, err := runGeneration(ctx, cfg, log, detector)
					return stageResult(pipeline.Summary(sum), err)
				},
				InsertWiki: func(ctx context.Context, _ server.StageRequest) (server.StageResult, error) {
					res, err := runPublishing(ctx, cfg, log, detector)
					return server.StageResult{
						Processed: res.Successful + res.Failed,
						Succeeded: res.Successful,
						Failed:    res.Failed,
						Errors:    res.Errors,
					}, err
				},
			}

			srv := server.New(runners, cfg.Port, log)

			// Shut down gracefully when the signal context is cancelled.
			go func() {
				<-cmd.Context().Done()
				_ = srv.Shutdown()
			}()

			return srv.Listen()
		},
	}
}

// runExtraction wires and runs the video-to-audio stage.
func runExtraction(ctx context.Context, cfg config.Config, log *logrus.Logger) (pipeline.Summary, error) {
	tool, err := ffmpeg.New()
	if err != nil {
		return pipeline.Summary{}, err
	}
	return pipeline.NewExtraction(tool, cfg, log).Run(ctx)
}

// runTranscription wires and runs the audio-to-transcript stage.
func runTranscription(ctx context.Context, cfg config.Config, log *logrus.Logger) (pipeline.Summary, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return pipeline.Summary{}, err
	}
	tool, err := ffmpeg.New()
	if err != nil {
		return pipeline.Summary{}, err
	}

	segmenter := audio.NewSegmenter(tool, cfg.Dirs.TempChunks,
		audio.WithMaxChunkBytes(config.MaxChunkBytes),
		audio.WithMaxParallel(cfg.MaxParallel),
		audio.WithWarnFunc(func(msg string) { log.Warn(msg) }),
	)
	transcriber := transcribe.NewOpenAITranscriber(openai.NewClient(cfg.OpenAIAPIKey))

	orchestrator := pipeline.NewTranscription(
		audio.NewValidator(tool), tool, segmenter, transcriber, cfg, log)
	return orchestrator.Run(ctx)
}

// runGeneration wires and runs the transcript-to-summary stage.
func runGeneration(ctx context.Context, cfg config.Config, log *logrus.Logger, detector *lang.Detector) (summarize.Summary, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return summarize.Summary{}, err
	}
	gen := summarize.NewOpenAIGenerator(openai.NewClient(cfg.OpenAIAPIKey))
	return summarize.NewMarkdown(gen, detector, cfg, log).Run(ctx)
}

// runPublishing wires and runs the markdown-to-wiki stage.
func runPublishing(ctx context.Context, cfg config.Config, log *logrus.Logger, detector *lang.Detector) (wiki.Result, error) {
	if err := cfg.RequireWiki(); err != nil {
		return wiki.Result{}, err
	}
	client := wiki.NewClient(cfg.WikiBaseURL, cfg.WikiAPIToken)
	return wiki.NewPublisher(client, detector, cfg, log).Run(ctx)
}

// stageResult converts a pipeline summary into the HTTP stage tally.
func stageResult(sum pipeline.Summary, err error) (server.StageResult, error) {
	return server.StageResult{
		Processed: sum.Processed,
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed,
		Errors:    sum.Errors,
	}, err
}

// reportSummary logs a stage tally and propagates the stage error.
func reportSummary(log *logrus.Logger, sum pipeline.Summary, err error) error {
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"processed": sum.Processed,
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
	}).Info("stage finished")
	return nil
}
