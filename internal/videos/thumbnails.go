package videos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/vidcurate/backend/internal/metrics"
	"github.com/vidcurate/backend/internal/models"
)

// AssetStorage persists binary assets and returns their public location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ThumbnailUpdater records a mirrored thumbnail location on a stored record.
// The write applies only while the record still carries expected; otherwise
// SetThumbnail returns ErrThumbnailSuperseded.
type ThumbnailUpdater interface {
	SetThumbnail(ctx context.Context, id, expected, thumbnailURL string) error
}

// ThumbnailMirrorConfig controls the concurrency characteristics of the mirror.
type ThumbnailMirrorConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// ThumbnailMirror copies provider thumbnails into object storage in the
// background so the catalog does not hot-link the provider.
type ThumbnailMirror struct {
	client  *http.Client
	storage AssetStorage
	updater ThumbnailUpdater
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan mirrorJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type mirrorJob struct {
	recordID string
	videoID  string
	expected string
}

var errMirrorClosed = errors.New("thumbnail mirror closed")

// NewThumbnailMirror starts cfg.Workers background workers.
func NewThumbnailMirror(client *http.Client, storage AssetStorage, updater ThumbnailUpdater, cfg ThumbnailMirrorConfig, logger *slog.Logger) *ThumbnailMirror {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &ThumbnailMirror{
		client:  client,
		storage: storage,
		updater: updater,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan mirrorJob, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	m.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go m.worker()
	}

	return m
}

// Enqueue schedules the default thumbnail of record for mirroring.
func (m *ThumbnailMirror) Enqueue(ctx context.Context, record models.VideoRecord) error {
	videoID := record.VideoID
	if videoID == "" {
		videoID, _ = ExtractID(record.URL)
	}
	if record.ID == "" || videoID == "" {
		return fmt.Errorf("thumbnail mirror: record %q has no video identifier", record.ID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return errMirrorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return errMirrorClosed
	case m.jobs <- mirrorJob{recordID: record.ID, videoID: videoID, expected: DefaultThumbnail(videoID)}:
		return nil
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones to finish.
func (m *ThumbnailMirror) Shutdown(ctx context.Context) error {
	m.once.Do(m.cancel)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (m *ThumbnailMirror) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case job := <-m.jobs:
			m.handleJob(job)
		}
	}
}

func (m *ThumbnailMirror) handleJob(job mirrorJob) {
	if m.storage == nil || m.updater == nil {
		m.logger.Error("thumbnail mirror missing dependencies", "hasStorage", m.storage != nil, "hasUpdater", m.updater != nil)
		metrics.ThumbnailMirrorTotal.WithLabelValues("error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	location, err := m.mirror(ctx, job)
	if err != nil {
		m.logger.Error("thumbnail mirror failed", "recordId", job.recordID, "videoId", job.videoID, "error", err)
		metrics.ThumbnailMirrorTotal.WithLabelValues("error").Inc()
		return
	}

	err = m.updater.SetThumbnail(ctx, job.recordID, job.expected, location)
	if errors.Is(err, ErrThumbnailSuperseded) {
		m.logger.Info("thumbnail mirror superseded", "recordId", job.recordID, "videoId", job.videoID)
		metrics.ThumbnailMirrorTotal.WithLabelValues("superseded").Inc()
		return
	}
	if err != nil {
		m.logger.Error("record mirrored thumbnail", "recordId", job.recordID, "error", err)
		metrics.ThumbnailMirrorTotal.WithLabelValues("error").Inc()
		return
	}

	m.logger.Info("thumbnail mirrored", "recordId", job.recordID, "location", location)
	metrics.ThumbnailMirrorTotal.WithLabelValues("ok").Inc()
}

func (m *ThumbnailMirror) mirror(ctx context.Context, job mirrorJob) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.expected, nil)
	if err != nil {
		return "", fmt.Errorf("build thumbnail request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch thumbnail: unexpected status %d", resp.StatusCode)
	}

	key := path.Join("thumbnails", job.recordID, job.videoID+".jpg")
	return m.storage.Save(ctx, key, io.LimitReader(resp.Body, 5<<20))
}
