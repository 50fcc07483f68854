// Package recorder is the data-logging agent core: a single-threaded
// cooperative loop that polls the telemetry link, validates and timestamps
// inbound frames, appends them to bounded flash-backed streams, and
// interleaves dual-phase power samples synchronized to each transmission.
package recorder

import (
	"context"
	"time"

	"datalogger-go/bus"
	"datalogger-go/errcode"
	"datalogger-go/services/logstore"
	"datalogger-go/types"
	"datalogger-go/x/conv"
	"datalogger-go/x/fmtx"
	"datalogger-go/x/mathx"
	"datalogger-go/x/timex"
)

// Stream headers. The telemetry header grows two trailing power columns when
// the remote node measures its own supply (9-field topology).
const (
	teleHeaderBase   = "timestamp_ms,temp_C,hum_pct,pres_hPa,gas_Ohm,pm1_std,pm2_5_std,pm10_std"
	teleHeaderRemote = teleHeaderBase + ",busVoltage_V,current_mA"
	powerHeader      = "timestamp_ms,busVoltage_V,current_mA,phase"

	telePath  = "telemetry.csv"
	powerPath = "power.csv"

	maxLineLen = 256
)

// Port is a polled serial channel. TryRead must never block: it returns
// whatever bytes are pending, possibly none.
type Port interface {
	TryRead(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// PowerReader is the phase sampler: one blocking read of the power sensor.
// No retry logic; sensor communication faults are not distinguished here.
type PowerReader interface {
	ReadSample() (bus_mV int32, cur_uA int32, err error)
}

// ConversionProber is implemented by sensors that flag completion of their
// first conversion. Boot refuses to start until the flag is observed.
type ConversionProber interface {
	ConversionReady() (bool, error)
}

// Recorder carries all mutable logger state explicitly; there are no
// process-wide singletons. One goroutine owns it.
type Recorder struct {
	cfg   types.RecorderConfig
	store *logstore.Store
	tele  *logstore.Stream
	power *logstore.Stream

	sampler PowerReader // nil in remote-sensing topology
	uplink  Port        // telemetry ingress
	console Port        // command channel; also the diagnostic sink

	conn *bus.Connection // optional; retained state/usage diagnostics

	tasks *TaskQueue
	sched *phaseScheduler

	verbose bool
	now     func() int64 // uptime ms; injectable in tests

	rxBuf    [64]byte
	teleLine lineBuf
	consLine lineBuf
}

// NewRecorder wires a recorder. sampler may be nil only in TopologyRemote;
// conn may be nil when no bus is attached.
func NewRecorder(cfg types.RecorderConfig, store *logstore.Store, tele, power *logstore.Stream,
	sampler PowerReader, uplink, console Port, conn *bus.Connection) *Recorder {
	r := &Recorder{
		cfg:     cfg,
		store:   store,
		tele:    tele,
		power:   power,
		sampler: sampler,
		uplink:  uplink,
		console: console,
		conn:    conn,
		tasks:   NewTaskQueue(),
		now:     timex.UptimeMs,
	}
	r.sched = newPhaseScheduler(r.tasks, cfg.SleepDelayMs, r.takeSample)
	return r
}

// Streams builds the two bounded streams for a config.
func Streams(cfg types.RecorderConfig) (tele, power *logstore.Stream) {
	h := teleHeaderBase
	if cfg.Topology == types.TopologyRemote {
		h = teleHeaderRemote
	}
	tele = &logstore.Stream{Name: "telemetry", Path: telePath, Header: h, Capacity: cfg.TelemetryCapacity}
	power = &logstore.Stream{Name: "power", Path: powerPath, Header: powerHeader, Capacity: cfg.PowerCapacity}
	return tele, power
}

// Boot initializes the streams and probes the power sensor. A missing or
// unready sensor is fatal in the co-located topology: the power subsystem is
// a required dependency of that build.
func (r *Recorder) Boot() error {
	if err := r.store.Init(); err != nil {
		fmtx.Fprintf(r.console, "warn: stream init (%s)\r\n", errcode.Of(err))
	}
	if r.cfg.Topology == types.TopologyColocated {
		if r.sampler == nil {
			r.publishState("halted", string(errcode.SensorInit))
			return errcode.SensorInit
		}
		if p, ok := r.sampler.(ConversionProber); ok {
			ready, err := p.ConversionReady()
			if err != nil || !ready {
				r.publishState("halted", string(errcode.SensorInit))
				return errcode.SensorInit
			}
		}
		if _, _, err := r.sampler.ReadSample(); err != nil {
			r.publishState("halted", string(errcode.SensorInit))
			return errcode.SensorInit
		}
	}
	r.publishState("boot", "")
	for _, s := range r.store.Streams() {
		r.publishUsage(s)
	}
	return nil
}

// Run is the cooperative control loop: poll the telemetry port, poll the
// console port, drain due deferred tasks, then idle for one tick. The idle
// delay bounds the UART polling rate; it is a throughput knob, not a
// correctness requirement.
func (r *Recorder) Run(ctx context.Context) {
	tick := time.Duration(mathx.Clamp(r.cfg.TickMs, 1, 100)) * time.Millisecond
	r.publishState("running", "")
	for ctx.Err() == nil {
		r.Step()
		time.Sleep(tick)
	}
	r.publishState("stopped", "context_cancelled")
}

// Step executes one loop iteration without the idle delay. Exposed so hosts
// and tests can drive the loop deterministically.
func (r *Recorder) Step() {
	r.pollTelemetry()
	r.pollConsole()
	r.tasks.Drain(r.now())
}

func (r *Recorder) pollTelemetry() {
	n, _ := r.uplink.TryRead(r.rxBuf[:])
	if n <= 0 {
		return
	}
	// Byte availability marks the start of a transmission: the scheduler
	// takes at most one active-phase sample per cycle here.
	if r.powerLogging() {
		r.sched.OnTraffic(r.now())
	}
	r.teleLine.feed(r.rxBuf[:n], func(line string) {
		r.ingest(line)
	})
}

func (r *Recorder) pollConsole() {
	n, _ := r.console.TryRead(r.rxBuf[:])
	if n <= 0 {
		return
	}
	r.consLine.feed(r.rxBuf[:n], func(line string) {
		if line == "" {
			return
		}
		if !r.dispatch(line) {
			r.echoFiltered(line)
		}
	})
}

// ingest classifies one complete line from the telemetry channel. Telemetry
// is timestamped and appended; anything else is offered to the command
// processor, then echoed as filtered in verbose mode.
func (r *Recorder) ingest(line string) {
	if line == "" {
		return
	}
	if Classify(line, r.cfg.Topology.FieldCount()) != ClassTelemetry {
		if !r.dispatch(line) {
			r.echoFiltered(line)
		}
		return
	}
	now := r.now()
	var nb [20]byte
	row := string(conv.Itoa(nb[:], now)) + "," + line
	switch err := r.store.Append(r.tele, row); errcode.Of(err) {
	case errcode.OK:
		if r.verbose {
			fmtx.Fprintf(r.console, "logged: %s\r\n", row)
		}
	case errcode.FileFull:
		fmtx.Fprintf(r.console, "warn: telemetry log full, logging disabled until clear\r\n")
		r.publishUsage(r.tele)
	case errcode.StreamDisabled:
		// Latched off earlier; drop silently.
	default:
		fmtx.Fprintf(r.console, "warn: telemetry append skipped (%s)\r\n", errcode.Of(err))
	}
}

// takeSample reads the power sensor once and appends a phase-tagged row.
// Invoked by the scheduler for both the active and the sleep phase. A sleep
// sample queued before the stream latched off is skipped without touching
// the sensor.
func (r *Recorder) takeSample(phase types.Phase, now int64) {
	if !r.powerLogging() {
		return
	}
	mv, ua, err := r.sampler.ReadSample()
	if err != nil {
		fmtx.Fprintf(r.console, "warn: power sample failed\r\n")
		return
	}
	row := formatSampleRow(now, mv, ua, phase)
	switch err := r.store.Append(r.power, row); errcode.Of(err) {
	case errcode.OK:
		r.publishSample(types.PowerSample{TSms: now, Bus_mV: mv, Cur_uA: ua, Phase: phase})
	case errcode.FileFull:
		fmtx.Fprintf(r.console, "warn: power log full, sampling disabled until clear\r\n")
		r.publishUsage(r.power)
	case errcode.StreamDisabled:
	default:
		fmtx.Fprintf(r.console, "warn: power append skipped (%s)\r\n", errcode.Of(err))
	}
}

// powerLogging reports whether dual-phase sampling should run: a local
// sensor is present and the power stream has not latched off.
func (r *Recorder) powerLogging() bool {
	return r.sampler != nil && r.power.Enabled()
}

func (r *Recorder) echoFiltered(line string) {
	if r.verbose {
		fmtx.Fprintf(r.console, "filtered: %s\r\n", line)
	}
}

// formatSampleRow renders ts,busVoltage_V,current_mA,phase with exactly
// three fraction digits, allocation-free except the final string.
func formatSampleRow(ts int64, bus_mV, cur_uA int32, phase types.Phase) string {
	var nb [24]byte
	out := make([]byte, 0, 48)
	out = append(out, conv.Itoa(nb[:], ts)...)
	out = append(out, ',')
	out = append(out, conv.Milli(nb[:], int64(bus_mV))...)
	out = append(out, ',')
	out = append(out, conv.Milli(nb[:], int64(cur_uA))...)
	out = append(out, ',')
	out = append(out, phase.Tag()...)
	return string(out)
}

// -----------------------------------------------------------------------------
// Bus diagnostics (optional)
// -----------------------------------------------------------------------------

func (r *Recorder) publishState(level, status string) {
	if r.conn == nil {
		return
	}
	r.conn.Publish(r.conn.NewMessage(
		bus.Topic{"recorder", "state"},
		types.RecorderState{Level: level, Status: status, TSms: r.now()},
		true,
	))
}

func (r *Recorder) publishSample(s types.PowerSample) {
	if r.conn == nil {
		return
	}
	r.conn.Publish(r.conn.NewMessage(bus.Topic{"recorder", "power", "sample"}, s, true))
}

func (r *Recorder) publishUsage(s *logstore.Stream) {
	if r.conn == nil {
		return
	}
	r.conn.Publish(r.conn.NewMessage(
		bus.Topic{"recorder", "stream", s.Name, "usage"},
		r.store.Usage(s),
		true,
	))
}

// -----------------------------------------------------------------------------
// Line assembly
// -----------------------------------------------------------------------------

// lineBuf accumulates bytes across ticks, ignores CR, splits on LF, and
// clamps runaway lines at maxLineLen.
type lineBuf struct {
	buf []byte
}

func (l *lineBuf) feed(p []byte, emit func(line string)) {
	for _, b := range p {
		switch b {
		case '\n':
			emit(string(l.buf))
			l.buf = l.buf[:0]
		case '\r':
			// ignore
		default:
			if len(l.buf) < maxLineLen {
				l.buf = append(l.buf, b)
			}
		}
	}
}
