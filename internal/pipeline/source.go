package pipeline

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docverify/internal/preprocess"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Source is a single still image given as a file path or raw bytes.
type Source struct {
	path string
	data []byte
}

// FromPath reads the image at path.
func FromPath(path string) Source { return Source{path: path} }

// FromBytes decodes an in-memory image.
func FromBytes(data []byte) Source { return Source{data: data} }

func (s Source) String() string {
	if s.path != "" {
		return s.path
	}
	return fmt.Sprintf("<%d bytes>", len(s.data))
}

func (s Source) preprocess(opts preprocess.Options) (*preprocess.Result, error) {
	switch {
	case s.path != "":
		return preprocess.PreprocessFile(s.path, opts)
	case len(s.data) > 0:
		return preprocess.PreprocessBytes(s.data, opts)
	default:
		return nil, &utils.ImageDecodeError{Source: "source", Err: errors.New("no path or data given")}
	}
}
