package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
	"github.com/GriffinCanCode/dynamic-fps/internal/metrics"
	"github.com/GriffinCanCode/dynamic-fps/internal/orchestrator/screen"
	"github.com/GriffinCanCode/dynamic-fps/internal/orchestrator/transitions"
	screencap "github.com/GriffinCanCode/dynamic-fps/internal/screen"
	"github.com/GriffinCanCode/dynamic-fps/internal/similarity"
	"github.com/GriffinCanCode/dynamic-fps/internal/syncx"
	"github.com/GriffinCanCode/dynamic-fps/internal/trace"
)

// Options configures the driver loop.
type Options struct {
	Target              string // window title substring
	CaptureRate         float64
	DiagnosticInterval  time.Duration // 0 disables diagnostics
	ReassertOnReacquire bool
	Controller          hysteresis.Config
}

// Status is the snapshot published after every cycle. Averages and the last
// score are nil until there is data. Baseline reports whether a previous
// frame is held, so the next capture will be scored.
type Status struct {
	Target          string            `json:"target"`
	Acquired        bool              `json:"acquired"`
	Window          *screencap.Window `json:"window,omitempty"`
	Mode            string            `json:"mode"`
	LastScore       *float64          `json:"last_score,omitempty"`
	AvgLong         *float64          `json:"avg_long,omitempty"`
	AvgShort        *float64          `json:"avg_short,omitempty"`
	Samples         int               `json:"samples"`
	Threshold       float64           `json:"threshold"`
	GraceUntil      *time.Time        `json:"grace_until,omitempty"`
	GraceRemaining  float64           `json:"grace_remaining_seconds"`
	Cycles          uint64            `json:"cycles"`
	Overruns        uint64            `json:"overruns"`
	CaptureFailures uint64            `json:"capture_failures"`
	Frames          uint64            `json:"frames"`
	Baseline        bool              `json:"baseline"`
	Stats           transitions.Stats `json:"stats"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Manager owns the controller, the frame processor and the pacing. Step and
// Run must be called from one goroutine; Status and Journal are safe from any.
type Manager struct {
	opts      Options
	source    screencap.Source
	act       hysteresis.Actuator
	proc      *screen.Processor
	ctl       *hysteresis.Controller
	pacer     *Pacer
	journal   *transitions.MemoryStore
	metrics   *metrics.Metrics
	status    *syncx.RWGuard[Status]
	onAcquire func(acquired bool)

	acquired        bool
	lossLogged      bool
	lostWhileLow    bool
	window          screencap.Window
	lastScore       float64
	hasScore        bool
	lastDiag        time.Time
	cycles          uint64
	overruns        uint64
	captureFailures uint64
}

// New creates a manager. act receives every mode assertion, including the
// High reassert after the target comes back.
func New(opts Options, source screencap.Source, scorer similarity.Scorer, act hysteresis.Actuator) *Manager {
	if opts.CaptureRate <= 0 {
		opts.CaptureRate = DefaultCaptureRate
	}
	if opts.DiagnosticInterval < 0 {
		opts.DiagnosticInterval = 0
	}
	m := &Manager{
		opts:    opts,
		source:  source,
		act:     act,
		proc:    screen.NewProcessor(scorer),
		ctl:     hysteresis.NewController(opts.Controller, act),
		pacer:   NewPacer(opts.CaptureRate),
		journal: transitions.NewStore(JournalMaxEntries, JournalEventBuffer),
	}
	m.status = syncx.NewGuard(Status{
		Target:    opts.Target,
		Mode:      hysteresis.High.String(),
		Threshold: opts.Controller.Threshold,
	})
	return m
}

// WithJournal replaces the default transition journal.
func (m *Manager) WithJournal(j *transitions.MemoryStore) *Manager {
	m.journal = j
	return m
}

// WithMetrics sets the Prometheus collectors.
func (m *Manager) WithMetrics(mt *metrics.Metrics) *Manager {
	m.metrics = mt
	return m
}

// WithAcquireHook sets a callback run when the target is found or lost.
func (m *Manager) WithAcquireHook(fn func(acquired bool)) *Manager {
	m.onAcquire = fn
	return m
}

// Status returns the latest snapshot.
func (m *Manager) Status() Status { return m.status.Get() }

// Journal returns the transition journal.
func (m *Manager) Journal() *transitions.MemoryStore { return m.journal }

// Run samples at the configured rate until ctx is done. ctx is checked
// between cycles and while pacing; a cycle in progress always completes.
// Cancellation is a clean stop and returns nil.
func (m *Manager) Run(ctx context.Context) error {
	log := trace.Logger(ctx)
	log.Info("sampling started",
		"target", m.opts.Target,
		"period", m.pacer.Period(),
		"threshold", m.opts.Controller.Threshold,
		"long_window", m.opts.Controller.LongWindow,
		"short_window", m.opts.Controller.ShortWindow,
		"grace", m.opts.Controller.GracePeriod)

	for ctx.Err() == nil {
		now := m.pacer.Begin()
		m.Step(ctx, now)

		overrun, err := m.pacer.Wait(ctx)
		if err != nil {
			break
		}
		if overrun > 0 {
			m.overruns++
			m.metrics.Overrun()
			log.Warn("cycle overran its budget",
				"elapsed", m.pacer.Period()+overrun,
				"budget", m.pacer.Period())
		}
	}

	log.Info("sampling stopped", "cycles", m.cycles, "mode", m.ctl.Mode().String())
	return nil
}

// Step runs one cycle at now.
func (m *Manager) Step(ctx context.Context, now time.Time) {
	ctx, span := trace.StartSpan(ctx, CycleSpanName)
	defer func() {
		span.End()
		m.metrics.ObserveCycle(span.Duration())
		m.publish(now)
	}()
	m.cycles++
	log := trace.Logger(ctx)

	win, found, err := m.source.Locate(m.opts.Target)
	if err != nil {
		log.Warn("window lookup failed, treating target as absent", "error", err)
		span.SetError(err)
	}
	if !found {
		m.lose(ctx, now)
		span.SetAttr("acquired", false)
		return
	}
	m.acquire(ctx, now, win)
	span.SetAttr("acquired", true)

	frame, err := m.source.Capture(win)
	if err != nil {
		m.captureFailures++
		m.metrics.CaptureFailed()
		span.SetError(err)
		log.Warn("capture failed, skipping cycle", "error", err)
		return
	}

	score, ok, err := m.proc.Process(frame)
	if err != nil {
		m.metrics.ScoreFailed()
		span.SetError(err)
		log.Warn("scoring failed, skipping cycle", "error", err)
		return
	}
	if !ok {
		return
	}
	m.lastScore, m.hasScore = score, true
	span.SetAttr("score", score)

	if change, changed := m.ctl.Observe(score, now); changed {
		m.journal.Record(change, m.opts.Target, false)
		m.metrics.ObserveTransition(change)
	}
	avgLong, avgShort := m.ctl.Averages()
	m.metrics.ObserveScore(score, avgLong, avgShort)
	m.diagnose(ctx, now)
}

// lose resets the decision state. The bookkeeping runs once per loss.
func (m *Manager) lose(ctx context.Context, now time.Time) {
	prev := m.ctl.Reset()
	m.proc.Reset()
	m.hasScore = false
	if prev == hysteresis.Low {
		m.lostWhileLow = true
		m.journal.MarkHigh(now)
	}

	if m.acquired {
		m.acquired = false
		m.metrics.Reset()
		m.metrics.SetAcquired(false)
		m.journal.Emit(transitions.Event{
			Type:   transitions.EventTarget,
			At:     now,
			Target: &transitions.TargetState{Title: m.opts.Target},
		})
		if m.onAcquire != nil {
			m.onAcquire(false)
		}
	}
	if !m.lossLogged {
		m.lossLogged = true
		trace.Logger(ctx).Info("target window not found, state reset",
			"target", m.opts.Target,
			"previous_mode", prev.String())
	}
}

func (m *Manager) acquire(ctx context.Context, now time.Time, win screencap.Window) {
	m.window = win
	if m.acquired {
		return
	}
	m.acquired = true
	m.lossLogged = false
	m.metrics.SetAcquired(true)
	trace.Logger(ctx).Info("target window acquired",
		"target", m.opts.Target,
		"left", win.Left, "top", win.Top, "right", win.Right, "bottom", win.Bottom)
	m.journal.Emit(transitions.Event{
		Type:   transitions.EventTarget,
		At:     now,
		Target: &transitions.TargetState{Title: m.opts.Target, Acquired: true},
	})
	if m.onAcquire != nil {
		m.onAcquire(true)
	}

	if m.lostWhileLow && m.opts.ReassertOnReacquire {
		m.reassertHigh(ctx, now)
	}
	m.lostWhileLow = false
}

// reassertHigh re-sends High when the target vanished while throttled, so
// the application's limit matches the freshly reset controller.
func (m *Manager) reassertHigh(ctx context.Context, now time.Time) {
	change := hysteresis.ModeChange{From: hysteresis.Low, To: hysteresis.High, At: now}
	if m.act != nil {
		if err := m.act.AssertMode(hysteresis.High); err != nil {
			change.ActuatorErr = err
			m.metrics.ActuatorFailed()
			trace.Logger(ctx).Warn("actuator rejected high reassert", "error", err)
		}
	}
	trace.Logger(ctx).Info("reasserted high frame-rate mode after reacquiring target", "target", m.opts.Target)
	m.journal.Record(change, m.opts.Target, true)
}

func (m *Manager) diagnose(ctx context.Context, now time.Time) {
	interval := m.opts.DiagnosticInterval
	if interval <= 0 || (!m.lastDiag.IsZero() && now.Sub(m.lastDiag) < interval) {
		return
	}
	m.lastDiag = now

	avgLong, avgShort := m.ctl.Averages()
	trace.Logger(ctx).Info("diagnostics",
		"score", m.lastScore,
		"avg_long", avgLong,
		"avg_short", avgShort,
		"samples", m.ctl.Samples(),
		"mode", m.ctl.Mode().String(),
		"grace_remaining", graceRemaining(m.ctl.GraceUntil(), now))
}

func (m *Manager) publish(now time.Time) {
	avgLong, avgShort := m.ctl.Averages()
	st := Status{
		Target:          m.opts.Target,
		Acquired:        m.acquired,
		Mode:            m.ctl.Mode().String(),
		AvgLong:         finite(avgLong),
		AvgShort:        finite(avgShort),
		Samples:         m.ctl.Samples(),
		Threshold:       m.opts.Controller.Threshold,
		Cycles:          m.cycles,
		Overruns:        m.overruns,
		CaptureFailures: m.captureFailures,
		Frames:          m.proc.Frames(),
		Baseline:        m.proc.HasPrevious(),
		Stats:           m.journal.Stats(now),
		UpdatedAt:       now,
	}
	if m.acquired {
		w := m.window
		st.Window = &w
	}
	if m.hasScore {
		st.LastScore = finite(m.lastScore)
	}
	if g := m.ctl.GraceUntil(); !g.IsZero() {
		st.GraceUntil = &g
		st.GraceRemaining = graceRemaining(g, now).Seconds()
	}
	m.status.Set(st)
}

func graceRemaining(until, now time.Time) time.Duration {
	if until.IsZero() || !now.Before(until) {
		return 0
	}
	return until.Sub(now)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
