package exporter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bdougie/subseqlabel/internal/models"
)

// ErrRejected is returned when asked to export a rejected submission
var ErrRejected = errors.New("submission was rejected")

// Options controls where an export is written
type Options struct {
	Path           string
	DeleteExisting bool
}

// Export writes labels.txt (one category per line) and file_list.txt
// ("<frame path> <label index>" per labeled frame) under opts.Path, copying
// the labeled frames into opts.Path/<sequence>.
func Export(opts Options, categories []models.Label, frameDir string, frames []string, submission models.Submission, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if submission.Annotation.Rejected {
		return fmt.Errorf("%w: %s", ErrRejected, submission.ID)
	}

	if err := preparePath(opts); err != nil {
		return err
	}

	// category index is its position in labels.txt
	labelIndex := make(map[int]int, len(categories))
	labelFile, err := os.Create(filepath.Join(opts.Path, "labels.txt"))
	if err != nil {
		return fmt.Errorf("failed to create label file: %w", err)
	}
	for i, c := range categories {
		if _, err := fmt.Fprintln(labelFile, c.Name); err != nil {
			labelFile.Close()
			return fmt.Errorf("failed to write label file: %w", err)
		}
		labelIndex[c.ID] = i
	}
	if err := labelFile.Close(); err != nil {
		return fmt.Errorf("failed to write label file: %w", err)
	}

	sequencePath := filepath.Join(opts.Path, submission.Sequence)
	if err := os.MkdirAll(sequencePath, 0755); err != nil {
		return fmt.Errorf("failed to create sequence directory '%s': %w", sequencePath, err)
	}

	fileList, err := os.Create(filepath.Join(opts.Path, "file_list.txt"))
	if err != nil {
		return fmt.Errorf("failed to create file list: %w", err)
	}
	defer fileList.Close()

	exported := 0
	for _, tf := range submission.Annotation.TargetFrames {
		if tf.Frame < 0 || tf.Frame >= len(frames) {
			return fmt.Errorf("frame %d not in sequence of %d frames", tf.Frame, len(frames))
		}
		index, ok := labelIndex[tf.Label]
		if !ok {
			return fmt.Errorf("frame %d has label %d which is not a known category", tf.Frame, tf.Label)
		}

		dst := filepath.Join(sequencePath, frames[tf.Frame])
		if err := copyFile(filepath.Join(frameDir, frames[tf.Frame]), dst); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(fileList, "%s %d\n", dst, index); err != nil {
			return fmt.Errorf("failed to write file list: %w", err)
		}
		exported++
	}

	logger.Info("exported sequence", "path", opts.Path, "sequence", submission.Sequence, "frames", exported)
	return fileList.Close()
}

func preparePath(opts Options) error {
	if opts.DeleteExisting {
		if err := os.RemoveAll(opts.Path); err != nil {
			return fmt.Errorf("failed to delete '%s': %w", opts.Path, err)
		}
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return fmt.Errorf("failed to create directory at %s: %w", opts.Path, err)
		}
		return nil
	}

	if _, err := os.Stat(opts.Path); err != nil {
		return fmt.Errorf("path does not exist: %s", opts.Path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open frame '%s': %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy frame to '%s': %w", dst, err)
	}
	return out.Close()
}
