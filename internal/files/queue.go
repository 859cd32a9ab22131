// Package files runs the upload queue: media messages are recorded as
// pending sends immediately, and this queue transfers the bytes in the
// background, resolving each file slot when the backend confirms it.
package files

import (
	"context"

	"go.uber.org/zap"

	"gram/internal/bus"
	"gram/internal/store"
)

// Uploader transfers one local file to the backend and returns the
// resolved local cache path for the uploaded bytes.
type Uploader interface {
	Upload(ctx context.Context, fileID int64, ref bus.MessageRef) (path string, err error)
}

type job struct {
	fileID int64
	ref    bus.MessageRef
}

// Queue serializes media uploads for pending messages.
type Queue struct {
	uploader Uploader
	records  *store.Records
	bus      *bus.Bus
	logger   *zap.Logger

	jobs   chan job
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates an upload queue.
func NewQueue(uploader Uploader, records *store.Records, b *bus.Bus, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		uploader: uploader,
		records:  records,
		bus:      b,
		logger:   logger,
		jobs:     make(chan job, 64),
		done:     make(chan struct{}),
	}
}

// Start begins draining the queue.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	go q.loop(ctx)
}

// Stop stops the queue and waits for the in-flight upload to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	<-q.done
}

// Enqueue schedules an upload for a pending message's file slot. A full
// queue drops the job; the message stays pending and visible, and a later
// retry can re-enqueue it.
func (q *Queue) Enqueue(fileID int64, ref bus.MessageRef) {
	select {
	case q.jobs <- job{fileID: fileID, ref: ref}:
	default:
		q.logger.Warn("upload queue full, dropping job",
			zap.Int64("file_id", fileID),
			zap.Int64("chat_id", ref.ChatID))
	}
}

func (q *Queue) loop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case j := <-q.jobs:
			q.process(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	path, err := q.uploader.Upload(ctx, j.fileID, j.ref)
	if err != nil {
		q.logger.Error("upload failed",
			zap.Int64("file_id", j.fileID),
			zap.Int64("chat_id", j.ref.ChatID),
			zap.Error(err))
		if q.bus != nil {
			q.bus.Emit(bus.KindFileUploadFailed, bus.FileResolution{FileID: j.fileID})
		}
		return
	}

	q.records.ResolveFile(j.fileID, path)
	q.logger.Debug("upload completed",
		zap.Int64("file_id", j.fileID),
		zap.String("path", path))
	if q.bus != nil {
		q.bus.Emit(bus.KindFileUploadCompleted, bus.FileResolution{FileID: j.fileID, Path: path})
	}
}
