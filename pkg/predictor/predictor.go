// Package predictor implements the load-based autoscaler: it watches the
// rate of change of each image's message queue depth and enqueues new
// container requests when an image appears to be falling behind.
package predictor

import (
	"context"
	"time"

	"github.com/Druvan/HarmonicIO/pkg/binpack"
	"github.com/Druvan/HarmonicIO/pkg/log"
	"github.com/Druvan/HarmonicIO/pkg/messagequeue"
	"github.com/Druvan/HarmonicIO/pkg/metrics"
)

// Enqueuer is the narrow capability this predictor needs from the
// container queue.
type Enqueuer interface {
	Put(req *binpack.ContainerRequest)
}

// Config tunes the autoscaling decision.
type Config struct {
	Autoscaling bool
	StepLength  time.Duration
	RocLower    float64
	RocUpper    float64
	RocMinimum  float64

	QueueLengthLimit int
	WaitTime         time.Duration

	LargeIncrement int
	SmallIncrement int
}

// Predictor runs the autoscaling decision loop.
type Predictor struct {
	queue messagequeue.Queue
	cq    Enqueuer
	cfg   Config

	previousDepth map[string]int
	roc           map[string]float64
	lastStart     map[string]time.Time
}

// New creates a Predictor. If cfg.Autoscaling is false, Start is a no-op.
func New(queue messagequeue.Queue, cq Enqueuer, cfg Config) *Predictor {
	return &Predictor{
		queue:         queue,
		cq:            cq,
		cfg:           cfg,
		previousDepth: make(map[string]int),
		roc:           make(map[string]float64),
		lastStart:     make(map[string]time.Time),
	}
}

// Start launches the autoscaling loop until ctx is done. It does nothing
// if autoscaling is disabled.
func (p *Predictor) Start(ctx context.Context) {
	if !p.cfg.Autoscaling {
		return
	}
	go func() {
		ticker := time.NewTicker(p.cfg.StepLength)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.stepOnce()
			}
		}
	}()
}

func (p *Predictor) stepOnce() {
	depths := p.queue.Verbose()

	for image, depth := range depths {
		prev, known := p.previousDepth[image]
		p.previousDepth[image] = depth
		if !known {
			p.roc[image] = 0
			continue
		}
		p.roc[image] = float64(depth-prev) / p.cfg.StepLength.Seconds()
	}

	for image, depth := range depths {
		if time.Since(p.lastStart[image]) < p.cfg.WaitTime {
			continue
		}

		roc := p.roc[image]
		increment := p.decideIncrement(roc, depth)
		if increment == 0 {
			continue
		}

		for i := 0; i < increment; i++ {
			p.cq.Put(&binpack.ContainerRequest{Image: image, SizeData: make(map[string]float64)})
		}
		p.lastStart[image] = time.Now()

		size := "small"
		if increment == p.cfg.LargeIncrement {
			size = "large"
		}
		metrics.ScaleUpsTotal.WithLabelValues(image, size).Inc()
		metrics.MessageQueueRoC.WithLabelValues(image).Set(roc)

		log.WithComponent("predictor").Info().
			Str("image", image).
			Float64("roc", roc).
			Int("increment", increment).
			Msg("scale-up decision")
	}
}

// decideIncrement implements the fixed precedence of scaling rules: a high
// rate of change always wins regardless of queue length; below that, a
// queue stuck above the configured limit still forces a scale-up sized by
// how clearly it is still growing.
func (p *Predictor) decideIncrement(roc float64, queueDepth int) int {
	switch {
	case roc > p.cfg.RocUpper:
		return p.cfg.LargeIncrement
	case roc > p.cfg.RocLower:
		return p.cfg.SmallIncrement
	case queueDepth > p.cfg.QueueLengthLimit && roc > p.cfg.RocMinimum:
		return p.cfg.LargeIncrement
	case queueDepth > p.cfg.QueueLengthLimit:
		return p.cfg.SmallIncrement
	default:
		return 0
	}
}
