package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	_ "go.uber.org/automaxprocs"

	"github.com/bdougie/subseqlabel/internal/annotator"
	"github.com/bdougie/subseqlabel/internal/config"
	"github.com/bdougie/subseqlabel/internal/exporter"
	"github.com/bdougie/subseqlabel/internal/extractor"
	"github.com/bdougie/subseqlabel/internal/labelstore"
	"github.com/bdougie/subseqlabel/internal/storage"
	"github.com/bdougie/subseqlabel/internal/submit"
)

// errSavesFailed marks a run whose saves did not all reach the endpoint
var errSavesFailed = errors.New("some saves failed")

type options struct {
	configPath string
	videoPath  string
	framesDir  string
	eventsPath string
	exportPath string
	imageID    int
	taskID     int
	resume     bool
	initSchema bool
	deleteOld  bool
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&opts.videoPath, "video", "", "Video to extract frames from")
	flag.StringVar(&opts.framesDir, "frames", "", "Directory of already extracted frames")
	flag.StringVar(&opts.eventsPath, "events", "", "Event script to replay (default stdin)")
	flag.StringVar(&opts.exportPath, "export", "", "Export the last save to this directory")
	flag.IntVar(&opts.imageID, "image-id", 0, "Sequence id sent with each save")
	flag.IntVar(&opts.taskID, "task-id", 0, "Annotation task id (overrides config)")
	flag.BoolVar(&opts.resume, "resume", false, "Restore labels from the latest journaled save")
	flag.BoolVar(&opts.initSchema, "init-schema", false, "Create the postgres journal tables")
	flag.BoolVar(&opts.deleteOld, "delete-existing", false, "Delete existing data at the export path")
	flag.BoolVar(&opts.verbose, "v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: subseqlabel (--video path/to/video.mp4 | --frames dir) [--events script] [options]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if (opts.videoPath == "") == (opts.framesDir == "") {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	if err := run(context.Background(), opts, logger); err != nil {
		if !errors.Is(err, errSavesFailed) {
			logger.Error("subseqlabel failed", "err", err)
		}
		os.Exit(1)
	}
}

// run loads the sequence, replays the events and waits for every save. The
// submit client and the journal are always drained before it returns.
func run(ctx context.Context, opts options, logger *slog.Logger) (err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.taskID != 0 {
		cfg.TaskID = opts.taskID
	}

	// Load the sequence
	framesDir := opts.framesDir
	var sequence string
	if opts.videoPath != "" {
		framesDir, err = extractor.ExtractFrames(ctx, logger, opts.videoPath, cfg.OutputDir, cfg.Extractor.Interval)
		if err != nil {
			return fmt.Errorf("failed to extract frames: %w", err)
		}
		sequence = extractor.SequenceName(opts.videoPath)
	} else {
		sequence = filepath.Base(filepath.Clean(framesDir))
	}
	frames, err := extractor.ListFrames(framesDir)
	if err != nil {
		return fmt.Errorf("failed to list frames: %w", err)
	}
	logger.Info("loaded sequence", "sequence", sequence, "frames", len(frames))

	journal, closeJournal, err := openJournal(ctx, cfg, sequence, opts.initSchema)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer closeJournal()

	client := submit.NewClient(
		cfg.SaveEndpoint(),
		&http.Client{Timeout: time.Duration(cfg.Server.Timeout) * time.Second},
		cfg.Server.Workers,
		logger,
	)

	store := labelstore.New(len(frames), cfg.Categories())
	session := annotator.NewSession(opts.imageID, cfg.TaskID, sequence, store, client, journal, logger)

	// Saves already queued are waited for and journaled even when the
	// replay stops early.
	failed := 0
	defer func() {
		failed += report(session, logger)
		if failed > 0 && err == nil {
			err = errSavesFailed
		}
		client.Close()
		if ferr := journal.Flush(); ferr != nil {
			logger.Error("failed to flush journal", "err", ferr)
			if err == nil {
				err = ferr
			}
		}
	}()

	if opts.resume {
		if _, err := session.Resume(ctx); err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
	}

	if err := replay(ctx, session, opts.eventsPath, logger); err != nil {
		return fmt.Errorf("failed to replay events: %w", err)
	}

	if opts.exportPath == "" {
		return nil
	}
	// The export reads the journal, so pending records are written first.
	failed += report(session, logger)
	if err := journal.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	return export(ctx, cfg, journal, opts.exportPath, opts.deleteOld, framesDir, frames, logger)
}

// report logs the outcome of every outstanding save and returns how many failed
func report(session *annotator.Session, logger *slog.Logger) int {
	failed := 0
	for _, result := range session.Wait() {
		if result.Err != nil {
			failed++
			logger.Error("save failed", "submission", result.SubmissionID, "status", result.StatusCode, "err", result.Err)
			continue
		}
		logger.Info("saved", "submission", result.SubmissionID, "response", string(result.Body))
	}
	return failed
}

func openJournal(ctx context.Context, cfg *config.Config, sequence string, initSchema bool) (storage.Journal, func(), error) {
	dbURL := cfg.DatabaseURL()
	if dbURL == "" {
		return storage.NewFileJournal(cfg.OutputDir, sequence), func() {}, nil
	}

	if initSchema {
		if err := storage.InitSchema(ctx, dbURL); err != nil {
			return nil, nil, err
		}
	}
	pg, err := storage.NewPostgresJournal(ctx, dbURL, sequence)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func replay(ctx context.Context, session *annotator.Session, eventsPath string, logger *slog.Logger) error {
	var r io.Reader = os.Stdin
	if eventsPath != "" {
		f, err := os.Open(eventsPath)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	events, err := annotator.ReadEvents(r)
	if err != nil {
		return err
	}

	skipped, err := session.Replay(ctx, events)
	if err != nil {
		return err
	}
	logger.Debug("replayed events", "events", len(events), "skipped", skipped, "changed", session.Store().Changed())
	return nil
}

func export(ctx context.Context, cfg *config.Config, journal storage.Journal, path string, deleteExisting bool, framesDir string, frames []string, logger *slog.Logger) error {
	latest, err := journal.Latest(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("nothing saved to export")
	}
	return exporter.Export(
		exporter.Options{Path: path, DeleteExisting: deleteExisting},
		cfg.Categories(),
		framesDir,
		frames,
		*latest,
		logger,
	)
}

var _ annotator.Submitter = (*submit.Client)(nil)
