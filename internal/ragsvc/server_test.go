package ragsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ragsvc/internal/model"
)

type seedStubService struct {
	dirs    []string
	results []*model.IngestResult
	err     error
}

func (s *seedStubService) IngestText(_ context.Context, _, _, _ string) (*model.IngestResult, error) {
	return nil, nil
}

func (s *seedStubService) IngestFile(_ context.Context, _ string) (*model.IngestResult, error) {
	return nil, nil
}

func (s *seedStubService) IngestDirectory(_ context.Context, dir string) ([]*model.IngestResult, error) {
	s.dirs = append(s.dirs, dir)
	return s.results, s.err
}

func (s *seedStubService) Query(_ context.Context, _ string, _ int) (*model.QueryResult, error) {
	return nil, nil
}

func (s *seedStubService) Stats(_ context.Context) (*model.Stats, error) {
	return nil, nil
}

func TestSeedDataDir(t *testing.T) {
	stub := &seedStubService{
		results: []*model.IngestResult{{Filename: "a.txt", ChunksStored: 2}},
	}

	seedDataDir(context.Background(), stub, "/data/docs")
	assert.Equal(t, []string{"/data/docs"}, stub.dirs)
}

func TestSeedDataDirEmpty(t *testing.T) {
	stub := &seedStubService{}

	seedDataDir(context.Background(), stub, "")
	assert.Empty(t, stub.dirs)
}

func TestSeedDataDirErrorsDoNotPanic(t *testing.T) {
	stub := &seedStubService{err: errors.New("unreadable file")}

	seedDataDir(context.Background(), stub, "/data/docs")
	assert.Equal(t, []string{"/data/docs"}, stub.dirs)
}
