package frame

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gate-snake/internal/game"

	"github.com/rs/zerolog/log"
)

const (
	// RecorderBuffer is the number of snapshots waiting to be written.
	// At the default tick rate 16 snapshots are 8 seconds of play.
	RecorderBuffer = 16
	// MaxConsecutiveErrors before the recorder gives up.
	MaxConsecutiveErrors = 10
	// slowWriteThreshold logs frames that take longer than this to write.
	slowWriteThreshold = 250 * time.Millisecond
)

// ErrRecorderStopped is returned by Submit after Stop.
var ErrRecorderStopped = errors.New("frame: recorder stopped")

// Recorder writes one PNG per snapshot into a directory. Rendering and
// disk I/O happen on a background goroutine; when it falls behind, new
// snapshots are dropped instead of blocking the producer.
type Recorder struct {
	renderer *Renderer
	dir      string

	queue    chan *game.Snapshot
	stopChan chan struct{}
	failed   chan struct{}
	stopOnce sync.Once
	failOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool

	lastSeq uint64 // writer goroutine only

	framesWritten     atomic.Uint64
	framesDropped     atomic.Uint64
	writeErrors       atomic.Uint64
	consecutiveErrors atomic.Int32
	maxWriteTimeNs    atomic.Int64
}

// NewRecorder creates dir if needed.
func NewRecorder(renderer *Renderer, dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("frame: create %s: %w", dir, err)
	}
	return &Recorder{
		renderer: renderer,
		dir:      dir,
		queue:    make(chan *game.Snapshot, RecorderBuffer),
		stopChan: make(chan struct{}),
		failed:   make(chan struct{}),
	}, nil
}

// Start begins the writer goroutine.
func (rec *Recorder) Start() {
	if !rec.running.CompareAndSwap(false, true) {
		return
	}

	rec.wg.Add(1)
	go rec.writerLoop()
	log.Info().Str("dir", rec.dir).Msg("recorder started")
}

// Submit queues a snapshot. It returns false when the frame was dropped
// because the writer is behind.
func (rec *Recorder) Submit(snap *game.Snapshot) (bool, error) {
	select {
	case <-rec.stopChan:
		return false, ErrRecorderStopped
	default:
	}

	select {
	case rec.queue <- snap:
		return true, nil
	default:
		rec.framesDropped.Add(1)
		return false, nil
	}
}

// Failed is closed once MaxConsecutiveErrors writes in a row have failed.
func (rec *Recorder) Failed() <-chan struct{} {
	return rec.failed
}

// Stop writes what is already queued and waits for the writer to exit.
func (rec *Recorder) Stop() {
	rec.stopOnce.Do(func() {
		close(rec.stopChan)
	})
	rec.wg.Wait()
}

func (rec *Recorder) writerLoop() {
	defer rec.wg.Done()
	defer rec.running.Store(false)

	for {
		select {
		case snap := <-rec.queue:
			rec.write(snap)
		case <-rec.stopChan:
			for {
				select {
				case snap := <-rec.queue:
					rec.write(snap)
				default:
					log.Info().
						Uint64("written", rec.framesWritten.Load()).
						Uint64("dropped", rec.framesDropped.Load()).
						Msg("recorder stopped")
					return
				}
			}
		}
	}
}

func (rec *Recorder) write(snap *game.Snapshot) {
	// The same snapshot can arrive twice when a client reconnects.
	if snap.Sequence != 0 && snap.Sequence == rec.lastSeq {
		return
	}

	start := time.Now()
	err := rec.writeFile(snap)
	took := time.Since(start)

	if err != nil {
		rec.writeErrors.Add(1)
		n := rec.consecutiveErrors.Add(1)
		if n <= 5 {
			log.Warn().Err(err).Int32("consecutive", n).Msg("frame write failed")
		}
		if n >= MaxConsecutiveErrors {
			rec.failOnce.Do(func() {
				log.Error().Int32("consecutive", n).Msg("recorder giving up")
				close(rec.failed)
			})
		}
		return
	}

	rec.consecutiveErrors.Store(0)
	rec.lastSeq = snap.Sequence
	rec.framesWritten.Add(1)

	if took.Nanoseconds() > rec.maxWriteTimeNs.Load() {
		rec.maxWriteTimeNs.Store(took.Nanoseconds())
	}
	if took > slowWriteThreshold {
		log.Warn().Dur("took", took).Uint64("seq", snap.Sequence).Msg("slow frame write")
	}
}

// FramePath is the file a snapshot is written to.
func (rec *Recorder) FramePath(snap *game.Snapshot) string {
	return filepath.Join(rec.dir, fmt.Sprintf("frame-%08d.png", snap.Sequence))
}

func (rec *Recorder) writeFile(snap *game.Snapshot) error {
	path := rec.FramePath(snap)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := rec.renderer.EncodePNG(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// GetStats returns recorder statistics.
func (rec *Recorder) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"framesWritten":     rec.framesWritten.Load(),
		"framesDropped":     rec.framesDropped.Load(),
		"writeErrors":       rec.writeErrors.Load(),
		"consecutiveErrors": rec.consecutiveErrors.Load(),
		"maxWriteTimeMs":    float64(rec.maxWriteTimeNs.Load()) / 1e6,
		"pending":           len(rec.queue),
		"running":           rec.running.Load(),
	}
}
