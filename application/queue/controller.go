// Package queue owns the audio and image work queues: item lifecycle,
// sequential batch runs, cancellation and cover-art lookup across queues.
package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/Skryldev/media-workbench/domain/ports"
	"github.com/Skryldev/media-workbench/infrastructure/sniff"
	"github.com/Skryldev/media-workbench/infrastructure/tagging"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/Skryldev/media-workbench/pkg/progress"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrRunActive        = errors.New("a batch run is already active on this queue")
	ErrItemProcessing   = errors.New("item is being processed")
	ErrItemNotFound     = errors.New("item not found")
	ErrInvalidCoverArt  = errors.New("linked cover art must reference an image queue item")
	ErrUnknownMediaKind = errors.New("unknown media kind")
)

// Config wires the controller to its engines.
type Config struct {
	AudioEngine ports.AudioTransformer
	ImageEngine ports.ImageTransformer
	AudioLoader ports.EngineLoader
	ImageLoader ports.EngineLoader

	DefaultAudio model.AudioSettings
	DefaultImage model.ImageSettings

	// MetadataReader seeds new audio items' tags. Defaults to reading the
	// source's own tags with a title derived from the file name.
	MetadataReader func(model.File) model.Metadata

	Reporter progress.Reporter
	Logger   *logger.Logger
	Clock    func() time.Time
}

// Controller is the only mutation surface for the two queues. All state is
// guarded by mu; transforms run outside the lock.
type Controller struct {
	audio    ports.AudioTransformer
	image    ports.ImageTransformer
	loaders  map[model.MediaKind]ports.EngineLoader
	defAudio model.AudioSettings
	defImage model.ImageSettings
	readMeta func(model.File) model.Metadata
	reporter progress.Reporter
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	queues map[model.MediaKind]*queue
}

type queue struct {
	kind    model.MediaKind
	entries []*entry
	run     *run
}

type entry struct {
	item model.QueueItem
	// removeOnSettle marks a processing item the user removed; it is dropped
	// once its transform returns.
	removeOnSettle bool
}

type run struct {
	cancel context.CancelFunc
}

// BatchSummary describes the outcome of one RunBatch call.
type BatchSummary struct {
	Kind      model.MediaKind
	Snapshot  int
	Completed int
	Failed    int
	Cancelled bool
	Duration  time.Duration
}

// New creates a controller with empty queues.
func New(cfg Config) (*Controller, error) {
	if cfg.AudioEngine == nil || cfg.ImageEngine == nil {
		return nil, fmt.Errorf("audio and image engines are required")
	}
	if cfg.AudioLoader == nil || cfg.ImageLoader == nil {
		return nil, fmt.Errorf("audio and image engine loaders are required")
	}
	c := &Controller{
		audio: cfg.AudioEngine,
		image: cfg.ImageEngine,
		loaders: map[model.MediaKind]ports.EngineLoader{
			model.KindAudio: cfg.AudioLoader,
			model.KindImage: cfg.ImageLoader,
		},
		defAudio: cfg.DefaultAudio,
		defImage: cfg.DefaultImage,
		readMeta: cfg.MetadataReader,
		reporter: cfg.Reporter,
		log:      cfg.Logger,
		now:      cfg.Clock,
		queues: map[model.MediaKind]*queue{
			model.KindAudio: {kind: model.KindAudio},
			model.KindImage: {kind: model.KindImage},
		},
	}
	if c.defAudio.Format == "" {
		c.defAudio = model.DefaultAudioSettings()
	}
	if c.defImage.Format == "" {
		c.defImage = model.DefaultImageSettings()
	}
	if c.readMeta == nil {
		c.readMeta = tagging.ReadMetadata
	}
	if c.reporter == nil {
		c.reporter = progress.NoopReporter{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Controller) queueLocked(kind model.MediaKind) (*queue, error) {
	q, ok := c.queues[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMediaKind, kind)
	}
	return q, nil
}

// findLocked locates an item in either queue.
func (c *Controller) findLocked(id string) (*queue, int, *entry) {
	for _, q := range c.queues {
		for i, e := range q.entries {
			if e.item.ID == id {
				return q, i, e
			}
		}
	}
	return nil, -1, nil
}

func (c *Controller) emit(updates ...progress.Update) {
	for _, u := range updates {
		c.reporter.Report(u)
	}
}

func (c *Controller) update(item *model.QueueItem, stage progress.Stage, msg string) progress.Update {
	return progress.Update{
		ItemID:    item.ID,
		Kind:      string(item.Kind),
		Stage:     stage,
		Percent:   item.Progress,
		Message:   msg,
		Timestamp: c.now(),
	}
}

// AddItems appends one pending item per file to the kind's queue and
// returns the new ids in order.
func (c *Controller) AddItems(kind model.MediaKind, files ...model.File) ([]string, error) {
	var metas []model.Metadata
	if kind == model.KindAudio {
		// tag parsing happens outside the lock
		metas = make([]model.Metadata, len(files))
		for i, f := range files {
			metas[i] = c.readMeta(f)
		}
	}

	c.mu.Lock()
	q, err := c.queueLocked(kind)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	ids := make([]string, 0, len(files))
	updates := make([]progress.Update, 0, len(files))
	now := c.now()
	for i, f := range files {
		item := model.QueueItem{
			ID:        uuid.NewString(),
			Source:    f,
			Kind:      kind,
			Status:    model.StatusPending,
			CreatedAt: now,
		}
		switch kind {
		case model.KindAudio:
			s := c.defAudio
			s.Metadata = metas[i]
			item.Audio = &s
		case model.KindImage:
			s := c.defImage
			item.Image = &s
		}
		q.entries = append(q.entries, &entry{item: item})
		ids = append(ids, item.ID)
		updates = append(updates, c.update(&item, progress.StageQueued, f.Name))
	}
	c.mu.Unlock()

	c.emit(updates...)
	c.log.Debug("items added", zap.String("kind", string(kind)), zap.Int("count", len(ids)))
	return ids, nil
}

// AddFiles routes each file to the audio or image queue by sniffing its
// content. Unrecognized files are skipped and reported in the returned error;
// recognized ones are still added.
func (c *Controller) AddFiles(files ...model.File) ([]string, error) {
	var ids []string
	var errs error
	for _, f := range files {
		kind, mime, ok := sniff.Detect(f)
		if !ok {
			errs = multierr.Append(errs, pkgerrors.NewUnsupportedFormatError(f.Name, "not an audio or image file ("+mime+")", nil))
			continue
		}
		if f.ContentType == "" {
			f.ContentType = mime
		}
		added, err := c.AddItems(kind, f)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		ids = append(ids, added...)
	}
	return ids, errs
}

// UpdateAudioSettings applies fn to a copy of the item's settings and commits
// it. A linked cover id must name an item in the image queue.
func (c *Controller) UpdateAudioSettings(id string, fn func(*model.AudioSettings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.editableLocked(id, model.KindAudio)
	if err != nil {
		return err
	}
	s := *e.item.Audio
	fn(&s)
	if s.LinkedCoverArtID != "" {
		q, _, target := c.findLocked(s.LinkedCoverArtID)
		if target == nil || q.kind != model.KindImage {
			return fmt.Errorf("%w: %q", ErrInvalidCoverArt, s.LinkedCoverArtID)
		}
	}
	e.item.Audio = &s
	return nil
}

// UpdateImageSettings applies fn to the item's image settings.
func (c *Controller) UpdateImageSettings(id string, fn func(*model.ImageSettings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.editableLocked(id, model.KindImage)
	if err != nil {
		return err
	}
	s := *e.item.Image
	fn(&s)
	e.item.Image = &s
	return nil
}

func (c *Controller) editableLocked(id string, kind model.MediaKind) (*entry, error) {
	_, _, e := c.findLocked(id)
	if e == nil || e.item.Kind != kind || e.removeOnSettle {
		return nil, fmt.Errorf("%w: %s item %q", ErrItemNotFound, kind, id)
	}
	if e.item.Status == model.StatusProcessing {
		return nil, ErrItemProcessing
	}
	return e, nil
}

// RemoveItem drops an item. A processing item is marked and dropped once its
// transform settles; its result is discarded.
func (c *Controller) RemoveItem(id string) error {
	c.mu.Lock()
	q, idx, e := c.findLocked(id)
	if e == nil || e.removeOnSettle {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrItemNotFound, id)
	}
	if e.item.Status == model.StatusProcessing {
		e.removeOnSettle = true
		c.mu.Unlock()
		c.log.ForItem(string(q.kind), id).Info("removal deferred until transform settles")
		return nil
	}
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	u := c.update(&e.item, progress.StageRemoved, "")
	c.mu.Unlock()

	c.emit(u)
	return nil
}

// ResetItem returns a completed or errored item to pending so the next run
// picks it up again.
func (c *Controller) ResetItem(id string) error {
	c.mu.Lock()
	_, _, e := c.findLocked(id)
	if e == nil || e.removeOnSettle {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrItemNotFound, id)
	}
	if e.item.Status == model.StatusProcessing {
		c.mu.Unlock()
		return ErrItemProcessing
	}
	e.item.Reset()
	u := c.update(&e.item, progress.StageQueued, "reset")
	c.mu.Unlock()

	c.emit(u)
	return nil
}

// ResetFailed returns every errored item of kind to pending.
func (c *Controller) ResetFailed(kind model.MediaKind) (int, error) {
	c.mu.Lock()
	q, err := c.queueLocked(kind)
	if err != nil {
		c.mu.Unlock()
		return 0, err
	}
	var updates []progress.Update
	for _, e := range q.entries {
		if e.item.Status == model.StatusError {
			e.item.Reset()
			updates = append(updates, c.update(&e.item, progress.StageQueued, "reset"))
		}
	}
	c.mu.Unlock()

	c.emit(updates...)
	return len(updates), nil
}

// ApplyPreset overwrites format, bitrate and normalize on every audio item
// currently queued, including one in flight. The running transform keeps
// the copy it started with, so the preset takes effect for that item on its
// next run. Items added later keep the defaults.
func (c *Controller) ApplyPreset(p model.Preset) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.queues[model.KindAudio].entries {
		if e.removeOnSettle {
			continue
		}
		s := *e.item.Audio
		p.Apply(&s)
		e.item.Audio = &s
		n++
	}
	c.log.Info("preset applied", zap.String("preset", p.Name), zap.Int("items", n))
	return n
}

// Items returns copies of the kind's items in queue order.
func (c *Controller) Items(kind model.MediaKind) []model.QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.queueLocked(kind)
	if err != nil {
		return nil
	}
	out := make([]model.QueueItem, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.item.Clone())
	}
	return out
}

// Item returns a copy of a single item.
func (c *Controller) Item(id string) (model.QueueItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _, e := c.findLocked(id)
	if e == nil {
		return model.QueueItem{}, false
	}
	return e.item.Clone(), true
}

// Result returns a copy of a completed item's output.
func (c *Controller) Result(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _, e := c.findLocked(id)
	if e == nil || e.item.Status != model.StatusCompleted {
		return nil, false
	}
	return bytes.Clone(e.item.Result), true
}

// EngineState reports the kind's engine status. Loading is also true while
// a batch run is active on that queue.
func (c *Controller) EngineState(kind model.MediaKind) model.EngineState {
	loader, ok := c.loaders[kind]
	if !ok {
		return model.EngineState{}
	}
	c.mu.Lock()
	running := c.queues[kind].run != nil
	c.mu.Unlock()
	return model.EngineState{
		Loaded:  loader.Loaded(),
		Loading: loader.Loading() || running,
	}
}

// Cancel stops the kind's active run. The item in flight reverts to pending
// and items not yet started stay pending.
func (c *Controller) Cancel(kind model.MediaKind) {
	c.mu.Lock()
	q, err := c.queueLocked(kind)
	if err != nil || q.run == nil {
		c.mu.Unlock()
		return
	}
	q.run.cancel()
	c.mu.Unlock()

	if kind == model.KindAudio {
		c.audio.Cancel()
	}
	c.log.Info("batch run cancelled", zap.String("kind", string(kind)))
}

// RunBatch processes the items pending at call time, in queue order, one at
// a time. Per-item failures are recorded and the run continues; cancellation
// stops it. Bootstrap failure leaves every item pending.
func (c *Controller) RunBatch(ctx context.Context, kind model.MediaKind) (BatchSummary, error) {
	summary := BatchSummary{Kind: kind}
	start := c.now()

	c.mu.Lock()
	q, err := c.queueLocked(kind)
	if err != nil {
		c.mu.Unlock()
		return summary, err
	}
	if q.run != nil {
		c.mu.Unlock()
		return summary, ErrRunActive
	}
	var snapshot []string
	for _, e := range q.entries {
		if e.item.Status == model.StatusPending && !e.removeOnSettle {
			snapshot = append(snapshot, e.item.ID)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.run = &run{cancel: cancel}
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		q.run = nil
		c.mu.Unlock()
	}()

	summary.Snapshot = len(snapshot)
	log := c.log.With(zap.String("kind", string(kind)), zap.Int("items", len(snapshot)))
	if runCtx.Err() != nil {
		// cancelled before the run got going
		summary.Cancelled = true
		return summary, nil
	}
	if len(snapshot) == 0 {
		return summary, nil
	}

	c.emit(progress.Update{Kind: string(kind), Stage: progress.StageBootstrap, Timestamp: c.now()})
	if err := c.loaders[kind].Load(runCtx); err != nil {
		if runCtx.Err() != nil {
			summary.Cancelled = true
			log.Info("batch run cancelled during bootstrap")
			return summary, nil
		}
		if !pkgerrors.IsBootstrap(err) {
			err = pkgerrors.NewBootstrapError(string(kind), err)
		}
		log.Error("engine bootstrap failed, queue left pending", zap.Error(err))
		c.emit(progress.Update{Kind: string(kind), Stage: progress.StageFailed, Message: err.Error(), Timestamp: c.now()})
		return summary, err
	}

	log.Info("batch run started")
	for _, id := range snapshot {
		if runCtx.Err() != nil {
			summary.Cancelled = true
			break
		}
		outcome := c.processOne(runCtx, q, id)
		switch outcome {
		case outcomeCompleted:
			summary.Completed++
		case outcomeFailed:
			summary.Failed++
		case outcomeCancelled:
			summary.Cancelled = true
		}
		if summary.Cancelled {
			break
		}
	}
	// a cancel that lands while the last item settles still ends the run
	// as cancelled
	if runCtx.Err() != nil {
		summary.Cancelled = true
	}
	summary.Duration = c.now().Sub(start)

	log.Info("batch run finished",
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("took", summary.Duration),
	)
	return summary, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCompleted
	outcomeFailed
	outcomeCancelled
)

// job is the state copied out of the queue before a transform starts.
type job struct {
	file  model.File
	audio model.AudioSettings
	image model.ImageSettings
	cover *model.CoverArt
}

func (c *Controller) processOne(ctx context.Context, q *queue, id string) outcome {
	c.mu.Lock()
	e := q.lookupLocked(id)
	if e == nil || e.removeOnSettle || e.item.Status != model.StatusPending {
		// removed or reset since the snapshot
		c.mu.Unlock()
		return outcomeSkipped
	}
	e.item.MarkProcessing(c.now())
	j := job{file: e.item.Source}
	if q.kind == model.KindAudio {
		j.audio = *e.item.Audio
		j.cover = c.resolveCoverLocked(j.audio.LinkedCoverArtID)
	} else {
		j.image = *e.item.Image
	}
	started := c.update(&e.item, progress.StageProcessing, "")
	c.mu.Unlock()
	c.emit(started)

	var out []byte
	var err error
	if q.kind == model.KindAudio {
		out, err = c.audio.Transform(ctx, j.file, j.audio, j.cover, c.progressFunc(e))
	} else {
		out, err = c.image.Transform(ctx, j.file, j.image)
	}

	c.mu.Lock()
	var result outcome
	var u progress.Update
	switch {
	case e.removeOnSettle:
		q.dropLocked(e)
		result = outcomeSkipped
		if err != nil && (pkgerrors.IsCancelled(err) || ctx.Err() != nil) {
			result = outcomeCancelled
		}
		u = c.update(&e.item, progress.StageRemoved, "removed while processing")
	case err == nil:
		e.item.MarkCompleted(out, c.now())
		result = outcomeCompleted
		u = c.update(&e.item, progress.StageCompleted, "")
	case pkgerrors.IsCancelled(err) || ctx.Err() != nil:
		e.item.Reset()
		result = outcomeCancelled
		u = c.update(&e.item, progress.StageReverted, "cancelled")
	default:
		e.item.MarkFailed(err.Error(), c.now())
		result = outcomeFailed
		u = c.update(&e.item, progress.StageFailed, err.Error())
	}
	c.mu.Unlock()
	c.emit(u)

	if result == outcomeFailed {
		c.log.ForItem(string(q.kind), id).Warn("item failed", zap.String("file", j.file.Name), zap.Error(err))
	}
	return result
}

// progressFunc records fractional engine progress on e as a percentage,
// emitting an update only when the percentage changes.
func (c *Controller) progressFunc(e *entry) func(float64) {
	return func(f float64) {
		pct := int(f * 100)
		c.mu.Lock()
		if e.item.Status != model.StatusProcessing || pct <= e.item.Progress {
			c.mu.Unlock()
			return
		}
		e.item.Progress = pct
		u := c.update(&e.item, progress.StageProcessing, "")
		c.mu.Unlock()
		c.emit(u)
	}
}

// resolveCoverLocked picks the cover for an audio item about to start: the
// linked image if it has completed, else the first completed image, else none.
// The bytes are copied so the image queue keeps sole ownership.
func (c *Controller) resolveCoverLocked(linked string) *model.CoverArt {
	images := c.queues[model.KindImage]
	if linked != "" {
		if e := images.lookupLocked(linked); e != nil && usableCover(e) {
			return coverFrom(e)
		}
	}
	for _, e := range images.entries {
		if usableCover(e) {
			return coverFrom(e)
		}
	}
	return nil
}

func usableCover(e *entry) bool {
	return e.item.Status == model.StatusCompleted && !e.removeOnSettle && len(e.item.Result) > 0
}

func coverFrom(e *entry) *model.CoverArt {
	data := bytes.Clone(e.item.Result)
	return &model.CoverArt{Data: data, MimeType: mimetype.Detect(data).String()}
}

func (q *queue) lookupLocked(id string) *entry {
	for _, e := range q.entries {
		if e.item.ID == id {
			return e
		}
	}
	return nil
}

func (q *queue) dropLocked(target *entry) {
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}
