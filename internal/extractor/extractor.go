package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SequenceName derives the sequence name from a video path
func SequenceName(videoPath string) string {
	return strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
}

// ExtractFrames extracts frames from a video file at specified intervals into
// outputDir/<sequence name> and returns that directory.
func ExtractFrames(ctx context.Context, logger *slog.Logger, videoPath, outputDir string, interval int) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	frameDirPath := filepath.Join(outputDir, SequenceName(videoPath))

	// Existing frames are reused
	if frames, err := ListFrames(frameDirPath); err == nil && len(frames) > 0 {
		logger.Info("frames already extracted", "dir", frameDirPath, "frames", len(frames))
		return frameDirPath, nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	logger.Info("extracting frames", "video", videoPath, "dir", frameDirPath, "interval", interval)

	args := []string{"-i", videoPath}
	if interval > 0 {
		args = append(args, "-vf", fmt.Sprintf("fps=1/%d", interval))
	}
	args = append(args, fmt.Sprintf("%s/frame_%%04d.jpg", frameDirPath))

	ffmpegCommand := exec.CommandContext(ctx, "ffmpeg", args...)

	output, err := ffmpegCommand.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return frameDirPath, nil
}

// frameExtensions maps accepted frame file extensions to their format
var frameExtensions = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".mhd":  ".mhd",
}

// frameNumber parses the number after the last '_' of a frame file name
func frameNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ListFrames returns the frame file names in dir (<name>_<n>.jpg, .png or
// .mhd) ordered by n. The position of a name in the result is its frame
// index. Directories mixing image formats are rejected.
func ListFrames(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %w", dir, err)
	}

	var frames []string
	format := ""
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext, ok := frameExtensions[strings.ToLower(filepath.Ext(file.Name()))]
		if !ok {
			continue
		}
		if format != "" && format != ext {
			return nil, fmt.Errorf("frames directory '%s' mixes %s and %s frames", dir, format, ext)
		}
		format = ext
		frames = append(frames, file.Name())
	}

	// numbered frames first, by number; the rest by name
	sort.SliceStable(frames, func(i, j int) bool {
		ni, oki := frameNumber(frames[i])
		nj, okj := frameNumber(frames[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		}
		return frames[i] < frames[j]
	})
	return frames, nil
}
