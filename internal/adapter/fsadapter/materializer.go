package fsadapter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	htmlExt  = ".html"
	dirPerm  = 0o755
	filePerm = 0o644
)

// htmlMaterializer writes rendered bodies to an output directory. Files are written to a
// temporary name and renamed so nobody reading the directory sees a partial file.
type htmlMaterializer struct {
	fs afero.Fs
}

func newHTMLMaterializer(fs afero.Fs) *htmlMaterializer {
	return &htmlMaterializer{fs: fs}
}

// Materialize stores html as <dir>/<unitName>.html and returns that path.
func (m *htmlMaterializer) Materialize(dir, unitName, html string) (string, error) {
	if err := m.fs.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("cannot create output dir %s: %w", dir, err)
	}

	outPath := filepath.Join(dir, unitName+htmlExt)

	tmp, err := afero.TempFile(m.fs, dir, "."+unitName+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("cannot create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(html); err != nil {
		tmp.Close()
		_ = m.fs.Remove(tmpName)

		return "", fmt.Errorf("cannot write %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)

		return "", fmt.Errorf("cannot close %s: %w", tmpName, err)
	}

	if err := m.fs.Chmod(tmpName, filePerm); err != nil && !os.IsNotExist(err) {
		_ = m.fs.Remove(tmpName)

		return "", fmt.Errorf("cannot chmod %s: %w", tmpName, err)
	}

	if err := m.fs.Rename(tmpName, outPath); err != nil {
		_ = m.fs.Remove(tmpName)

		return "", fmt.Errorf("cannot rename %s to %s: %w", tmpName, outPath, err)
	}

	return outPath, nil
}
