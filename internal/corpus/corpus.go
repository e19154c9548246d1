// Package corpus locates and reads the documentation files that get ingested.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/liliang-cn/askbook/internal/domain"
)

// DefaultExtensions lists the file types ingested when none are configured
var DefaultExtensions = []string{".md", ".mdx", ".txt", ".pdf"}

// DefaultTitleScanLines is how many leading lines are searched for a "# " heading
const DefaultTitleScanLines = 10

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return domain.FileTypePDF
	case ".md", ".markdown":
		return domain.FileTypeMD
	case ".mdx":
		return domain.FileTypeMDX
	case ".txt", "":
		return domain.FileTypeTXT
	default:
		return ext[1:]
	}
}

// Walk returns every file under root whose extension is in extensions, in
// lexical order. A missing root wraps domain.ErrNotFound.
func Walk(root string, extensions []string) ([]string, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("corpus root %s: %w", root, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus root %s is not a directory", domain.ErrInvalidRequest, root)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Read loads a document and extracts its title.
func Read(path string, titleScanLines int) (*domain.Document, error) {
	fileType := DetectFileType(path)

	var text string
	var err error
	if fileType == domain.FileTypePDF {
		text, err = readPDF(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return &domain.Document{
		Path:     path,
		Title:    ExtractTitle(text, filepath.Base(path), titleScanLines),
		FileType: fileType,
		Text:     text,
	}, nil
}

func readPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}
	return buf.String(), nil
}

// ExtractTitle returns the first top-level markdown heading found in the first
// scanLines lines, or filename without its document extension.
func ExtractTitle(text, filename string, scanLines int) string {
	if scanLines <= 0 {
		scanLines = DefaultTitleScanLines
	}
	lines := strings.SplitN(text, "\n", scanLines+1)
	if len(lines) > scanLines {
		lines = lines[:scanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}

	for _, ext := range []string{".mdx", ".md", ".markdown", ".txt", ".pdf"} {
		if strings.HasSuffix(strings.ToLower(filename), ext) {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}
