package service

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/ingest"
	"spedflow/internal/port"
)

// ImportInput is the DTO for importing SPED files.
type ImportInput struct {
	CompanyID uuid.UUID
	// Paths are local file paths or s3://bucket/key URIs, read in order.
	Paths []string
	Force bool
}

// ImportService turns paths into pipeline sources, runs the pipeline and
// archives local sources once the run succeeds.
type ImportService interface {
	Import(ctx context.Context, input *ImportInput) (uuid.UUID, *ingest.Outcome, error)
}

// PipelineRunner executes one ingest run.
type PipelineRunner interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Outcome, error)
}

type importService struct {
	runner        PipelineRunner
	storage       port.ObjectStorage
	archiveBucket string
	logger        *zap.Logger
}

// NewImportService creates a new ImportService implementation. storage may be
// nil when neither s3:// sources nor archiving are configured.
func NewImportService(runner PipelineRunner, storage port.ObjectStorage, archiveBucket string, logger *zap.Logger) ImportService {
	return &importService{
		runner:        runner,
		storage:       storage,
		archiveBucket: archiveBucket,
		logger:        logger.With(zap.String("component", "import")),
	}
}

func (s *importService) Import(ctx context.Context, input *ImportInput) (uuid.UUID, *ingest.Outcome, error) {
	runID := uuid.New()
	if len(input.Paths) == 0 {
		return runID, nil, domain.ErrNoSourceFiles
	}

	sources := make([]ingest.Source, 0, len(input.Paths))
	for _, p := range input.Paths {
		src, err := s.source(p)
		if err != nil {
			return runID, nil, err
		}
		sources = append(sources, src)
	}

	out, err := s.runner.Run(ctx, ingest.Request{
		CompanyID: input.CompanyID,
		RunID:     runID,
		Sources:   sources,
		Force:     input.Force,
	})
	if err != nil {
		return runID, nil, err
	}

	s.archive(ctx, input.CompanyID, runID, out.Opening.Period, sources)
	return runID, out, nil
}

func (s *importService) source(p string) (ingest.Source, error) {
	if bucket, key, ok := ingest.ParseObjectURI(p); ok {
		if s.storage == nil {
			return nil, fmt.Errorf("%w: %s (object storage not configured)", domain.ErrUnsupportedSource, p)
		}
		return ingest.ObjectSource{Storage: s.storage, Bucket: bucket, Key: key}, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrNoSourceFiles, p, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrUnsupportedSource, p)
	}
	return ingest.FileSource{Path: p}, nil
}

// archive copies local sources to the archive bucket. Failures are logged; the
// import has already committed.
func (s *importService) archive(ctx context.Context, companyID, runID uuid.UUID, period string, sources []ingest.Source) {
	if s.storage == nil || s.archiveBucket == "" {
		return
	}
	periodKey := period
	if len(period) == 7 {
		periodKey = period[3:] + "-" + period[:2]
	}
	for _, src := range sources {
		fs, ok := src.(ingest.FileSource)
		if !ok {
			continue
		}
		rc, err := fs.Open(ctx)
		if err != nil {
			s.logger.Warn("archive: cannot reopen source", zap.String("file", fs.Path), zap.Error(err))
			continue
		}
		key := path.Join(companyID.String(), periodKey, runID.String(), fs.Name())
		_, err = s.storage.Upload(ctx, port.UploadInput{
			Bucket:      s.archiveBucket,
			Key:         key,
			Body:        rc,
			ContentType: "text/plain; charset=iso-8859-1",
		})
		rc.Close()
		if err != nil {
			s.logger.Warn("archive upload failed", zap.String("file", fs.Path), zap.Error(err))
			continue
		}
		s.logger.Debug("source archived", zap.String("bucket", s.archiveBucket), zap.String("key", key))
	}
}
