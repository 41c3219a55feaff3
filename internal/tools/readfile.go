package tools

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/codeatlas-ai/codeatlas/internal/models"
)

func (r *Registry) readFile(_ context.Context, handle models.RepositoryHandle, args map[string]any) (string, error) {
	rel := argString(args, "path", "")

	resolved, err := resolveWithin(handle.Path, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%q: %w", rel, ErrNotFound)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%q: %w", rel, ErrNotAFile)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", rel, err)
	}
	defer f.Close()

	// Read one byte past the cap to detect truncation without loading the
	// whole file.
	buf := make([]byte, r.maxReadBytes+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read %q: %w", rel, err)
	}
	if n > r.maxReadBytes {
		return string(buf[:r.maxReadBytes]) +
			fmt.Sprintf("\n[truncated: output capped at %d bytes, file is %d bytes]", r.maxReadBytes, info.Size()), nil
	}
	return string(buf[:n]), nil
}
