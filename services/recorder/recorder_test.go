package recorder

import (
	"bytes"
	"strings"
	"testing"

	"datalogger-go/services/logstore"
	"datalogger-go/storage/memfs"
	"datalogger-go/types"
)

// scriptPort queues inbound bytes and captures writes.
type scriptPort struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (p *scriptPort) TryRead(b []byte) (int, error) {
	n, _ := p.in.Read(b)
	return n, nil
}
func (p *scriptPort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *scriptPort) push(s string)               { p.in.WriteString(s) }

// fakeSampler returns fixed readings and counts calls.
type fakeSampler struct {
	mv, ua int32
	calls  int
}

func (f *fakeSampler) ReadSample() (int32, int32, error) {
	f.calls++
	return f.mv, f.ua, nil
}

type rig struct {
	r       *Recorder
	store   *logstore.Store
	tele    *logstore.Stream
	power   *logstore.Stream
	sampler *fakeSampler
	uplink  *scriptPort
	console *scriptPort
	clock   int64
}

func newRig(t *testing.T, cfg types.RecorderConfig) *rig {
	t.Helper()
	med := memfs.New()
	tele, power := Streams(cfg)
	store := logstore.New(med, tele, power)
	g := &rig{
		store:   store,
		tele:    tele,
		power:   power,
		uplink:  &scriptPort{},
		console: &scriptPort{},
	}
	var sampler PowerReader
	if cfg.Topology == types.TopologyColocated {
		g.sampler = &fakeSampler{mv: 3300, ua: 12500}
		sampler = g.sampler
	}
	g.r = NewRecorder(cfg, store, tele, power, sampler, g.uplink, g.console, nil)
	g.r.now = func() int64 { return g.clock }
	if err := g.r.Boot(); err != nil {
		t.Fatalf("Boot error: %v", err)
	}
	return g
}

func colocatedCfg() types.RecorderConfig {
	return types.RecorderConfig{
		Topology:          types.TopologyColocated,
		TelemetryCapacity: 4096,
		PowerCapacity:     4096,
		TickMs:            10,
		SleepDelayMs:      SleepDelayMs,
	}
}

func dump(t *testing.T, g *rig, s *logstore.Stream) []string {
	t.Helper()
	var buf bytes.Buffer
	if err := g.store.Dump(s, &buf); err != nil {
		t.Fatalf("dump %s: %v", s.Name, err)
	}
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestIngestTimestampsAndLogsInOrder(t *testing.T) {
	g := newRig(t, colocatedCfg())

	g.clock = 1000
	g.uplink.push("23.5,44,1003.2,95000,1,2,3\n")
	g.r.Step()

	g.clock = 2000
	g.uplink.push("24.0,45,1003.1,96000,1,2,3\n")
	g.r.Step()

	lines := dump(t, g, g.tele)
	want := []string{
		teleHeaderBase,
		"1000,23.5,44,1003.2,95000,1,2,3",
		"2000,24.0,45,1003.1,96000,1,2,3",
	}
	if len(lines) != len(want) {
		t.Fatalf("telemetry lines = %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDualPhaseSamplingAcrossTheLoop(t *testing.T) {
	g := newRig(t, colocatedCfg())

	// Transmission arrives in two chunks; one active sample only.
	g.clock = 1000
	g.uplink.push("23.5,44,1003.2,")
	g.r.Step()
	g.clock = 1010
	g.uplink.push("95000,1,2,3\n")
	g.r.Step()

	if g.sampler.calls != 2 { // boot probe + one active sample
		t.Fatalf("sampler calls = %d, want 2", g.sampler.calls)
	}

	// Idle ticks until just before the settling window closes.
	g.clock = 1000 + SleepDelayMs - 1
	g.r.Step()
	if g.sampler.calls != 2 {
		t.Fatal("sleep sample fired early")
	}

	g.clock = 1000 + SleepDelayMs
	g.r.Step()
	if g.sampler.calls != 3 {
		t.Fatalf("sampler calls = %d, want 3 after sleep sample", g.sampler.calls)
	}

	lines := dump(t, g, g.power)
	want := []string{
		powerHeader,
		"1000,3.300,12.500,a",
		"31000,3.300,12.500,s",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("power line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFullPowerStreamDisablesSampling(t *testing.T) {
	cfg := colocatedCfg()
	cfg.PowerCapacity = int64(len(powerHeader)) + 3 // room for the header only
	g := newRig(t, cfg)

	g.clock = 500
	g.uplink.push("23.5,44,1003.2,95000,1,2,3\n")
	g.r.Step()

	if g.power.Enabled() {
		t.Fatal("power stream should have latched off")
	}
	callsAfterLatch := g.sampler.calls

	// Further traffic must not trigger sampling at all.
	g.clock = 60_000
	g.uplink.push("25.0,44,1003.2,95000,1,2,3\n")
	g.r.Step()
	g.clock = 120_000
	g.r.Step()
	if g.sampler.calls != callsAfterLatch {
		t.Fatalf("sampler ran while stream disabled: %d -> %d", callsAfterLatch, g.sampler.calls)
	}

	// Telemetry logging is unaffected by the power latch.
	if !g.tele.Enabled() {
		t.Fatal("telemetry stream must stay enabled")
	}
}

func TestRemoteTopologyNeverSamples(t *testing.T) {
	cfg := colocatedCfg()
	cfg.Topology = types.TopologyRemote
	g := newRig(t, cfg)

	g.clock = 100
	g.uplink.push("23.5,44,1003.2,95000,1,2,3,3.29,12.4\n")
	g.r.Step()

	lines := dump(t, g, g.tele)
	if lines[0] != teleHeaderRemote {
		t.Fatalf("remote header = %q", lines[0])
	}
	if lines[1] != "100,23.5,44,1003.2,95000,1,2,3,3.29,12.4" {
		t.Fatalf("remote row = %q", lines[1])
	}
	if got := dump(t, g, g.power); len(got) != 1 {
		t.Fatalf("power stream should hold only its header, got %v", got)
	}
}

// probedSampler adds a conversion-ready flag to the fake sensor.
type probedSampler struct {
	fakeSampler
	ready bool
}

func (p *probedSampler) ConversionReady() (bool, error) { return p.ready, nil }

func TestBootRequiresFirstConversion(t *testing.T) {
	cfg := colocatedCfg()
	med := memfs.New()
	tele, power := Streams(cfg)
	store := logstore.New(med, tele, power)
	s := &probedSampler{fakeSampler: fakeSampler{mv: 3300, ua: 12500}}
	r := NewRecorder(cfg, store, tele, power, s, &scriptPort{}, &scriptPort{}, nil)

	if err := r.Boot(); err == nil {
		t.Fatal("Boot must fail while the sensor has not completed a conversion")
	}
	if s.calls != 0 {
		t.Fatalf("sampler read %d times before conversion ready", s.calls)
	}

	s.ready = true
	if err := r.Boot(); err != nil {
		t.Fatalf("Boot with ready sensor: %v", err)
	}
	if s.calls != 1 {
		t.Fatalf("boot probe reads = %d, want 1", s.calls)
	}
}

func TestBootFatalWithoutSensorWhenColocated(t *testing.T) {
	cfg := colocatedCfg()
	med := memfs.New()
	tele, power := Streams(cfg)
	store := logstore.New(med, tele, power)
	r := NewRecorder(cfg, store, tele, power, nil, &scriptPort{}, &scriptPort{}, nil)
	if err := r.Boot(); err == nil {
		t.Fatal("Boot must fail without a power sensor in co-located topology")
	}
}

func TestConsoleCommands(t *testing.T) {
	g := newRig(t, colocatedCfg())

	g.clock = 700
	g.uplink.push("23.5,44,1003.2,95000,1,2,3\n")
	g.r.Step()

	g.console.push("status\n")
	g.r.Step()
	out := g.console.out.String()
	for _, want := range []string{"uptime_ms: 700", "topology: colocated", "telemetry: ", "power: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}

	g.console.out.Reset()
	g.console.push("print\n")
	g.r.Step()
	out = g.console.out.String()
	if !strings.Contains(out, "700,23.5,44,1003.2,95000,1,2,3") {
		t.Fatalf("print output missing logged row:\n%s", out)
	}
	if !strings.Contains(out, "-- end of telemetry --") {
		t.Fatalf("print output missing end marker:\n%s", out)
	}

	g.console.out.Reset()
	g.console.push("clear\n")
	g.r.Step()
	if u := g.store.Usage(g.tele); u.CurrentBytes != int64(len(teleHeaderBase)+1) {
		t.Fatalf("clear left %d bytes", u.CurrentBytes)
	}

	g.console.out.Reset()
	g.console.push("wipe\n")
	g.r.Step()
	if !strings.Contains(g.console.out.String(), "storage wiped") {
		t.Fatalf("wipe reply missing:\n%s", g.console.out.String())
	}
	for _, s := range g.store.Streams() {
		if !s.Enabled() {
			t.Fatalf("stream %s disabled after wipe", s.Name)
		}
	}
}

func TestVerboseFilteredEcho(t *testing.T) {
	g := newRig(t, colocatedCfg())

	// Quiet by default: noise is dropped silently.
	g.console.push("mystery input\n")
	g.r.Step()
	if got := g.console.out.String(); got != "" {
		t.Fatalf("quiet mode echoed %q", got)
	}

	g.console.push("verbose\n")
	g.r.Step()
	g.console.out.Reset()

	g.console.push("mystery input\n")
	g.r.Step()
	if !strings.Contains(g.console.out.String(), "filtered: mystery input") {
		t.Fatalf("verbose mode should echo filtered lines, got %q", g.console.out.String())
	}
}

func TestBootBannerOnUplinkIsNeverLogged(t *testing.T) {
	g := newRig(t, colocatedCfg())
	g.clock = 10
	g.uplink.push("rst:0x1 (POWERON),boot:0x13 (SPI_FAST_FLASH_BOOT)\n")
	g.r.Step()
	if got := dump(t, g, g.tele); len(got) != 1 {
		t.Fatalf("boot banner reached the log: %v", got)
	}
}
