package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/compozy/woodsage/pkg/logger"
)

// WriteJSON writes data as two-space indented JSON followed by a newline.
func WriteJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ReadInput reads source, where "" and "-" mean stdin.
func ReadInput(ctx context.Context, stdin io.Reader, source string) ([]byte, error) {
	if source == "" || source == "-" {
		logger.FromContext(ctx).Debug("Reading standard input")
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, NewCliError("STDIN_READ_ERROR", "Failed to read standard input", err.Error())
		}
		return data, nil
	}
	logger.FromContext(ctx).Debug("Reading file", "file", source)
	info, err := os.Stat(source)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, NewCliError("FILE_NOT_FOUND", "File not found: "+source)
	case err == nil && info.IsDir():
		return nil, NewCliError("FILE_READ_ERROR", "Expected a file but got a directory: "+source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, NewCliError("FILE_READ_ERROR", "Failed to read file: "+source, err.Error())
	}
	return data, nil
}

// LogOperation runs fn and logs its duration and outcome.
func LogOperation(ctx context.Context, operation string, fn func() error) error {
	log := logger.FromContext(ctx)
	start := time.Now()
	log.Debug("Starting operation", "operation", operation)
	err := fn()
	if err != nil {
		log.Error("Operation failed", "operation", operation, "duration", time.Since(start), "error", err)
		return err
	}
	log.Info("Operation completed", "operation", operation, "duration", time.Since(start))
	return nil
}
