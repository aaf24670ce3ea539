package annotation

import (
	"path"
	"path/filepath"
	"strings"
)

const s3Scheme = "s3://"

// sibling resolves rel against the directory holding audioPath. s3:// paths
// are joined with forward slashes and keep their scheme.
func sibling(audioPath, rel string) string {
	if rest, ok := strings.CutPrefix(audioPath, s3Scheme); ok {
		return s3Scheme + path.Join(path.Dir(rest), rel)
	}
	return filepath.Join(filepath.Dir(audioPath), rel)
}

// baseName returns the file name of audioPath for either path style.
func baseName(audioPath string) string {
	if rest, ok := strings.CutPrefix(audioPath, s3Scheme); ok {
		return path.Base(rest)
	}
	return filepath.Base(audioPath)
}
