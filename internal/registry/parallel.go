package registry

import (
	"context"
	"fmt"

	"github.com/cybertec-postgresql/pgscript/internal/discovery"
	"github.com/cybertec-postgresql/pgscript/internal/logger"
	"github.com/cybertec-postgresql/pgscript/internal/parser"
	"golang.org/x/sync/errgroup"
)

// WorkerPool reads and classifies script files in parallel
type WorkerPool struct {
	classifier *parser.Classifier
	maxWorkers int
}

// NewWorkerPool creates a new worker pool for parallel parsing
func NewWorkerPool(classifier *parser.Classifier, maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if classifier == nil {
		classifier = parser.NewClassifier()
	}
	return &WorkerPool{
		classifier: classifier,
		maxWorkers: maxWorkers,
	}
}

// parseJob represents a single file to classify
type parseJob struct {
	file  *discovery.DiscoveredFile
	index int
}

// ParseAll classifies files with the configured concurrency limit. Results keep
// the order of files. The first unrecoverable failure cancels the remaining
// jobs and is returned; no partial result is returned with it.
func (wp *WorkerPool) ParseAll(ctx context.Context, files []discovery.DiscoveredFile) ([]*parser.Classification, error) {
	numFiles := len(files)
	if numFiles == 0 {
		return nil, nil
	}

	jobs := make(chan *parseJob, numFiles)
	for i := range files {
		jobs <- &parseJob{file: &files[i], index: i}
	}
	close(jobs)

	workers := min(wp.maxWorkers, numFiles)
	logger.Debug("Parsing %d files with %d workers", numFiles, workers)

	// Each index is written by exactly one worker
	results := make([]*parser.Classification, numFiles)

	g, gctx := errgroup.WithContext(ctx)
	for id := range workers {
		g.Go(func() error {
			return wp.worker(gctx, id, jobs, results)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// worker is the goroutine that processes parse jobs
func (wp *WorkerPool) worker(ctx context.Context, workerID int, jobs <-chan *parseJob, results []*parser.Classification) error {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		c, err := parser.Parse(job.file, wp.classifier)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", job.file.RelativePath, err)
		}
		if err := c.Unbalanced(); err != nil {
			return fmt.Errorf("failed to parse %s: %w", job.file.RelativePath, err)
		}
		if err := c.Malformed(); err != nil {
			logger.Debug("%s parsed as %s after: %v", job.file.RelativePath, c.Resource.ResourceKind(), err)
		}

		logger.Debug("Worker %d: %s is a %s", workerID, job.file.RelativePath, c.Resource.ResourceKind())
		results[job.index] = c
	}
	return nil
}
