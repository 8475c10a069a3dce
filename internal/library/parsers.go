package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// supportedExtensions lists the file types the indexer picks up when walking
// the library root.
var supportedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true,
	".py": true, ".js": true, ".ts": true, ".go": true,
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
	".csv": true, ".xlsx": true, ".xls": true,
}

// textExtensions is the subset whose content is read directly into the
// corpus. Binary formats (PDF, Office documents) are indexed by path and
// name only, so indexing never hangs on a large or corrupt binary.
var textExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".go": true,
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
	".csv": true,
}

// Supported reports whether the file at path would be indexed.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// parseDocument renders the searchable corpus text for one file. Every
// document starts with a path/name header so searches match on filenames
// even for formats whose content is not extracted. rel must use forward
// slashes.
func parseDocument(path, rel string, maxSize int64) (string, error) {
	header := fmt.Sprintf("path: %s\nname: %s\n", rel, filepath.Base(path))

	if !textExtensions[strings.ToLower(filepath.Ext(path))] {
		return header, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("library: open %s: %w", rel, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSize))
	if err != nil {
		return "", fmt.Errorf("library: read %s: %w", rel, err)
	}
	return header + "\n" + string(content), nil
}
