// utimer-host talks to the timer accuracy firmware over a serial port.
//
// Commands:
//
//	capture    run one schedule and record its reports to a session file
//	summarize  print interval statistics for a stored session
//	replay     walk a schedule's legs simulated, or run it on the OS clock
//	console    interactive command session with the firmware
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"utimer/core"
	"utimer/host/capture"
	"utimer/host/serial"
	"utimer/ostimer"
	"utimer/protocol"
	"utimer/sim"
)

const defaultDevice = "/dev/ttyACM0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "capture":
		err = cmdCapture(os.Args[2:])
	case "summarize":
		err = cmdSummarize(os.Args[2:])
	case "replay":
		err = cmdReplay(os.Args[2:])
	case "console":
		err = cmdConsole(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: utimer-host <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  capture    - Run one schedule and record reports to a session file")
	fmt.Println("  summarize  - Print interval statistics for a stored session")
	fmt.Println("  replay     - Walk a schedule's legs simulated, or run it on the OS clock")
	fmt.Println("  console    - Interactive command session with the firmware")
	fmt.Println()
	fmt.Println("Run 'utimer-host <command> -h' for command flags.")
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openPort(device string, baud int) (serial.Port, error) {
	cfg := serial.DefaultConfig(device)
	if baud > 0 {
		cfg.Baud = baud
	}
	return serial.Open(cfg)
}

func cmdCapture(args []string) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	device := fs.String("device", defaultDevice, "Serial device path")
	baud := fs.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	kind := fs.String("kind", capture.ScheduleInterval, "Schedule kind: timeout or interval")
	micros := fs.Uint64("micros", 20000, "Requested duration in microseconds")
	count := fs.Int("count", 50, "Reports to collect (interval schedules)")
	wait := fs.Duration("wait", 5*time.Second, "Longest wait for a single report")
	out := fs.String("out", "session.cbor", "Session file path")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	fs.Parse(args)

	logger := newLogger(*verbose)

	port, err := openPort(*device, *baud)
	if err != nil {
		return err
	}

	res, err := capture.Run(port, capture.Options{
		Device:  *device,
		Kind:    *kind,
		Micros:  *micros,
		Count:   *count,
		Wait:    *wait,
		OutPath: *out,
	}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %d records -> %s\n", res.Header.SessionID, res.Records, *out)
	printStats(res.Stats, res.Header.NominalMicros)
	return nil
}

func cmdSummarize(args []string) error {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	session := fs.String("session", "session.cbor", "Session file path")
	fs.Parse(args)

	r, err := capture.OpenSession(*session)
	if err != nil {
		return err
	}
	defer r.Close()

	hdr := r.Header()
	fmt.Printf("session %s\n", hdr.SessionID)
	fmt.Printf("  device:   %s\n", hdr.Device)
	fmt.Printf("  started:  %s\n", hdr.StartedAt.Format(time.RFC3339))
	fmt.Printf("  schedule: %s %d us\n", hdr.Schedule, hdr.NominalMicros)
	fmt.Printf("  timebase: %d/%d ns per tick, %d ticks per period\n",
		hdr.TickNum, hdr.TickDen, hdr.PeriodTicks)

	stats, err := capture.SummarizeSession(r)
	if err != nil {
		return err
	}
	printStats(stats, hdr.NominalMicros)
	return nil
}

func printStats(stats capture.IntervalStats, nominal uint64) {
	if stats.Count() == 0 {
		fmt.Println("no intervals to summarize")
		return
	}
	fmt.Printf("intervals: %d\n", stats.Count())
	fmt.Printf("  min:    %d us\n", stats.Min())
	fmt.Printf("  max:    %d us\n", stats.Max())
	fmt.Printf("  mean:   %.2f us\n", stats.Mean())
	fmt.Printf("  stddev: %.2f us\n", stats.StdDev())
	if nominal > 0 {
		fmt.Printf("  drift:  %+.1f ppm of %d us nominal\n", stats.DriftPPM(nominal), nominal)
	}
}

func cmdReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	kind := fs.String("kind", capture.ScheduleTimeout, "Schedule kind: timeout or interval")
	micros := fs.Uint64("micros", 20000, "Requested duration in microseconds")
	tickNum := fs.Uint64("tick-num", 1000, "Nanoseconds per tick, numerator")
	tickDen := fs.Uint64("tick-den", 1, "Nanoseconds per tick, denominator")
	period := fs.Uint64("period", 65536, "Ticks per hardware counting period")
	cycles := fs.Int("cycles", 3, "Interval cycles to walk")
	wall := fs.Bool("wall", false, "Run on the OS scheduler in real time instead of walking legs")
	fs.Parse(args)

	res := core.NanosPerTick(*tickNum, *tickDen, uint32(*period))
	fmt.Printf("timebase: %s\n", res.String())

	ticks, err := res.TicksFromMicros(*micros)
	if err != nil {
		return err
	}
	plan, err := core.ComputePlan(ticks, res.PeriodTicks)
	if err != nil {
		return err
	}
	fmt.Printf("plan: %d ticks = %d full periods + %d remainder\n",
		ticks, plan.Overflows, plan.Remainder)

	if *wall {
		return replayWall(*kind, *micros, res, *cycles)
	}
	return replaySim(*kind, *micros, res, *cycles)
}

// replaySim walks every leg of the schedule on the simulated backend,
// printing the armed tick count per leg and the elapsed time per fire.
func replaySim(kind string, micros uint64, res core.Resolution, cycles int) error {
	backend := sim.New()
	ctrl, err := core.NewController(backend, res)
	if err != nil {
		return err
	}

	fired := 0
	wantFires := 1
	if kind == capture.ScheduleInterval {
		wantFires = cycles
		err = ctrl.SetIntervalMicros(micros, func() { fired++ })
	} else {
		err = ctrl.SetTimeoutMicros(micros, func() { fired++ })
	}
	if err != nil {
		return err
	}

	for leg := 1; fired < wantFires; leg++ {
		armed, ok := backend.Armed()
		if !ok {
			break
		}
		before := fired
		backend.Fire()
		line := fmt.Sprintf("leg %3d: %10d ticks", leg, armed)
		if fired > before {
			line += fmt.Sprintf("  -> fire #%d at %d us", fired,
				res.MicrosFromTicks(backend.ElapsedTicks()))
		}
		fmt.Println(line)
	}
	ctrl.ClearTimer()

	fmt.Printf("total: %d legs, %d ticks = %d us\n",
		len(backend.Legs()), backend.ElapsedTicks(),
		res.MicrosFromTicks(backend.ElapsedTicks()))
	return nil
}

// replayWall runs the schedule on the OS scheduler backend and prints the
// wall-clock arrival of each callback. OS scheduling jitter dominates the
// spacing; the point is watching the real library run, not accuracy.
func replayWall(kind string, micros uint64, res core.Resolution, cycles int) error {
	backend := ostimer.New()
	ctrl, err := core.NewController(backend, res)
	if err != nil {
		return err
	}
	defer ctrl.ClearTimer()

	wantFires := 1
	if kind == capture.ScheduleInterval {
		wantFires = cycles
	}

	fires := make(chan time.Time, wantFires)
	cb := func() {
		select {
		case fires <- time.Now():
		default:
		}
	}

	start := time.Now()
	if kind == capture.ScheduleInterval {
		err = ctrl.SetIntervalMicros(micros, cb)
	} else {
		err = ctrl.SetTimeoutMicros(micros, cb)
	}
	if err != nil {
		return err
	}

	deadline := time.Duration(micros*uint64(wantFires)*2)*time.Microsecond + time.Second
	expired := time.After(deadline)
	prev := start
	for i := 1; i <= wantFires; i++ {
		select {
		case at := <-fires:
			fmt.Printf("fire #%d at %10.1f us  (+%10.1f us)\n", i,
				float64(at.Sub(start).Nanoseconds())/1e3,
				float64(at.Sub(prev).Nanoseconds())/1e3)
			prev = at
		case <-expired:
			return fmt.Errorf("timed out after %s waiting for fire %d of %d",
				deadline, i, wantFires)
		}
	}
	return nil
}

func cmdConsole(args []string) error {
	fs := flag.NewFlagSet("console", flag.ExitOnError)
	device := fs.String("device", defaultDevice, "Serial device path")
	baud := fs.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	fs.Parse(args)

	logger := newLogger(*verbose)

	port, err := openPort(*device, *baud)
	if err != nil {
		return err
	}

	col := capture.NewCollector(port, logger)
	defer col.Close()

	boot, status, err := col.Identify(2 * time.Second)
	if err != nil {
		return fmt.Errorf("identify firmware: %w", err)
	}
	fmt.Printf("firmware timebase: %d/%d ns per tick, %d ticks per period\n",
		boot.TickNum, boot.TickDen, boot.PeriodTicks)
	printStatus(status)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		words, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "quit", "exit", "q":
			return nil

		case "help", "?":
			printConsoleHelp()

		case "timeout", "interval":
			if len(words) < 2 {
				fmt.Printf("usage: %s <micros>\n", words[0])
				continue
			}
			us, err := strconv.ParseUint(words[1], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: bad duration: %v\n", err)
				continue
			}
			if words[0] == "timeout" {
				err = col.StartTimeout(us)
			} else {
				err = col.StartInterval(us)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			awaitStatus(col)

		case "stop":
			if err := col.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			awaitStatus(col)

		case "status":
			boot, status, err := col.Identify(2 * time.Second)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("timebase: %d/%d ns per tick, %d ticks per period\n",
				boot.TickNum, boot.TickDen, boot.PeriodTicks)
			printStatus(status)

		case "watch":
			n := 1
			if len(words) > 1 {
				if parsed, err := strconv.Atoi(words[1]); err == nil && parsed > 0 {
					n = parsed
				}
			}
			watchReports(col, n)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", words[0])
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func printConsoleHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  timeout <micros>   - Schedule a one-shot callback")
	fmt.Println("  interval <micros>  - Schedule a repeating callback")
	fmt.Println("  stop               - Cancel the live schedule")
	fmt.Println("  status             - Query timebase and schedule state")
	fmt.Println("  watch [n]          - Print the next n callback reports")
	fmt.Println("  help               - Show this help message")
	fmt.Println("  quit/exit/q        - Exit the program")
	fmt.Println()
}

func printStatus(s protocol.Status) {
	fmt.Printf("mode=%s overflows=%d remainder=%d left=%d remainder_armed=%v\n",
		core.Mode(s.Mode), s.Overflows, s.Remainder, s.OverflowsLeft, s.RemainderArmed)
}

func awaitStatus(col *capture.Collector) {
	status, err := col.WaitStatus(2 * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	printStatus(status)
}

func watchReports(col *capture.Collector, n int) {
	var prev uint64
	for i := 0; i < n; i++ {
		rec, err := col.NextReport(30 * time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		line := fmt.Sprintf("report seq=%d clock=%d us", rec.Seq, rec.Micros)
		if i > 0 {
			line += fmt.Sprintf(" interval=%d us", rec.Micros-prev)
		}
		prev = rec.Micros
		fmt.Println(line)
	}
}
