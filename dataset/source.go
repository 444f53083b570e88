package dataset

import (
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/types"
	"bytes"
	"context"
	"fmt"
	"os"
)

var datasetLogger = logger.NewLogger("Dataset")

// Source yields a labeled dataset. Failures are reported wrapped in
// types.ErrDataUnavailable.
type Source interface {
	Name() string
	Load(ctx context.Context) (*types.LabeledDataset, error)
}

type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Load(_ context.Context) (*types.LabeledDataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	defer f.Close()
	ds, err := parserFor(s.Path)(s.Name(), f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrDataUnavailable, s.Path, err)
	}
	return ds, nil
}

// Downloader fetches an object by key.
type Downloader interface {
	Download(key string) ([]byte, error)
}

type S3Source struct {
	Client Downloader
	Key    string
}

func NewS3Source(client Downloader, key string) *S3Source {
	return &S3Source{Client: client, Key: key}
}

func (s *S3Source) Name() string {
	return "s3:" + s.Key
}

func (s *S3Source) Load(_ context.Context) (*types.LabeledDataset, error) {
	buf, err := s.Client.Download(s.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	ds, err := parserFor(s.Key)(s.Name(), bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrDataUnavailable, s.Key, err)
	}
	return ds, nil
}
