package capture

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Schedule kinds accepted by Run.
const (
	ScheduleTimeout  = "timeout"
	ScheduleInterval = "interval"
)

// Options configures one capture run.
type Options struct {
	Device  string // recorded in the session header
	Kind    string // ScheduleTimeout or ScheduleInterval
	Micros  uint64 // requested duration
	Count   int    // reports to collect; a timeout yields exactly one
	Wait    time.Duration
	OutPath string // session file destination
}

// Result summarizes a finished capture.
type Result struct {
	Header  Header
	Stats   IntervalStats
	Records int
}

// Run starts a schedule on the firmware behind port, collects its
// reports into a session file and returns interval statistics. The port
// is owned by the collector afterwards and closed before returning.
func Run(port io.ReadWriteCloser, opts Options, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Kind != ScheduleTimeout && opts.Kind != ScheduleInterval {
		return Result{}, fmt.Errorf("unknown schedule kind %q", opts.Kind)
	}
	if opts.Count <= 0 || opts.Kind == ScheduleTimeout {
		opts.Count = 1
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}

	col := NewCollector(port, logger)
	defer col.Close()

	boot, _, err := col.Identify(2 * time.Second)
	if err != nil {
		return Result{}, fmt.Errorf("identify firmware: %w", err)
	}
	logger.Info("firmware timebase",
		zap.Uint64("tick_num", boot.TickNum),
		zap.Uint64("tick_den", boot.TickDen),
		zap.Uint32("period_ticks", boot.PeriodTicks))

	hdr := NewHeader(opts.Device, opts.Kind, opts.Micros, boot)
	w, err := NewWriter(opts.OutPath, hdr)
	if err != nil {
		return Result{}, fmt.Errorf("create session file: %w", err)
	}
	defer w.Close()

	if opts.Kind == ScheduleTimeout {
		err = col.StartTimeout(opts.Micros)
	} else {
		err = col.StartInterval(opts.Micros)
	}
	if err != nil {
		return Result{}, fmt.Errorf("start schedule: %w", err)
	}

	status, err := col.WaitStatus(2 * time.Second)
	if err != nil {
		return Result{}, fmt.Errorf("schedule ack: %w", err)
	}
	// An accepted schedule always plans at least one leg; a rejected
	// duration leaves the plan empty
	if status.Overflows == 0 && status.Remainder == 0 {
		return Result{}, fmt.Errorf("firmware rejected duration of %d us", opts.Micros)
	}
	logger.Info("schedule running",
		zap.String("kind", opts.Kind),
		zap.Uint64("micros", opts.Micros),
		zap.Uint32("overflows", status.Overflows),
		zap.Uint32("remainder", status.Remainder))

	res := Result{Header: hdr}

	// The per-report wait covers the whole schedule, not just the gap
	// between reports
	wait := opts.Wait
	if full := time.Duration(opts.Micros) * time.Microsecond * 2; full > wait {
		wait = full
	}

	var prev uint64
	for i := 0; i < opts.Count; i++ {
		rec, err := col.NextReport(wait)
		if err != nil {
			logger.Warn("report wait gave up",
				zap.Int("collected", res.Records),
				zap.Error(err))
			break
		}
		if err := w.Append(rec); err != nil {
			return res, fmt.Errorf("append record: %w", err)
		}
		if res.Records > 0 {
			res.Stats.Add(rec.Micros - prev)
		}
		prev = rec.Micros
		res.Records++
	}

	if opts.Kind == ScheduleInterval {
		if err := col.Stop(); err != nil {
			logger.Warn("stop command failed", zap.Error(err))
		} else if _, err := col.WaitStatus(2 * time.Second); err != nil {
			logger.Warn("stop ack missing", zap.Error(err))
		}
	}

	logger.Info("session written",
		zap.String("path", opts.OutPath),
		zap.String("session_id", hdr.SessionID),
		zap.Int("records", res.Records),
		zap.Uint32("decode_errors", col.DecodeErrors()))

	return res, nil
}
