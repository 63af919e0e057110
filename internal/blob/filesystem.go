package blob

import "kincore/internal/infra/blob/fs"

// NewFilesystem returns a Store writing under root (fs.DefaultRoot when empty).
func NewFilesystem(root string) (Store, error) {
	s, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return s, nil
}
