package fsadapter

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/jgivc/livesite/internal/entity"
)

// fileResolver serves {{ file: name }} directives from the entry's associated files.
// files must be sorted by RelativePath. A resolver is read only and built per entry.
type fileResolver struct {
	baseURL string
	files   []entity.AssociatedFile
}

func newFileResolver(baseURL string, files []entity.AssociatedFile) *fileResolver {
	return &fileResolver{baseURL: baseURL, files: files}
}

func (r *fileResolver) ResolveFile(fileName string) (string, error) {
	file, err := r.GetFile(fileName)
	if err != nil {
		return "", err
	}

	return path.Join(r.baseURL, file.RelativePath), nil
}

func (r *fileResolver) GetFile(fileName string) (*entity.AssociatedFile, error) {
	idx, ok := slices.BinarySearchFunc(r.files, fileName, func(f entity.AssociatedFile, name string) int {
		return strings.Compare(f.RelativePath, name)
	})
	if !ok {
		return nil, fmt.Errorf("cannot find file: %s", fileName)
	}

	return &r.files[idx], nil
}
