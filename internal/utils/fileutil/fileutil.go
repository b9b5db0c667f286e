package fileutil

import (
	"io"
	"os"
	"path/filepath"

	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// StdioPath is the conventional path meaning stdin or stdout.
// StdioPath 表示标准输入或标准输出的约定路径。
const StdioPath = "-"

// AtomicWriteFile writes data to a temporary file and then renames it to the target file.
// AtomicWriteFile 将数据写入临时文件，然后将其重命名为目标文件。
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename) // #nosec G703 // Safe: filepath.Dir cleans the path preventing traversal
	tmpFile, err := os.CreateTemp(dir, "atomic-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name()) // Clean up if something fails

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpFile.Name(), filename) // #nosec G703 // filename is validated by caller
}

// WriteOutput writes a finished artifact to path, or to w when path is empty or "-".
// WriteOutput 将完成的产物写入 path；当 path 为空或 "-" 时写入 w。
func WriteOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == StdioPath {
		_, err := w.Write(data)
		return err
	}
	return AtomicWriteFile(filepath.Clean(path), data, 0644)
}

// ReadInput reads path, or r when path is empty or "-".
// ReadInput 读取 path；当 path 为空或 "-" 时读取 r。
func ReadInput(r io.Reader, path string) ([]byte, error) {
	if path == "" || path == StdioPath {
		return io.ReadAll(r)
	}
	safePath := filepath.Clean(path)
	data, err := os.ReadFile(safePath) // #nosec G304 // path is sanitized with filepath.Clean
	if err != nil {
		return nil, rserrors.NewFilePathError(safePath, err)
	}
	return data, nil
}
