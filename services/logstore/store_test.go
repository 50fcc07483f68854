package logstore

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"datalogger-go/errcode"
	"datalogger-go/storage/memfs"
)

const testHeader = "timestamp_ms,busVoltage_V,current_mA,phase"

func newTestStore(capacity int64) (*Store, *memfs.Medium, *Stream) {
	med := memfs.New()
	s := &Stream{Name: "power", Path: "power.csv", Header: testHeader, Capacity: capacity}
	st := New(med, s)
	if err := st.Init(); err != nil {
		panic(err)
	}
	return st, med, s
}

func TestInitWritesHeaderAndEnables(t *testing.T) {
	st, _, s := newTestStore(4096)
	if !s.Enabled() {
		t.Fatal("fresh stream should be enabled")
	}
	u := st.Usage(s)
	if want := int64(len(testHeader) + 1); u.CurrentBytes != want {
		t.Fatalf("usage after init = %d, want %d", u.CurrentBytes, want)
	}
	if u.CapacityBytes != 4096 {
		t.Fatalf("capacity = %d, want 4096", u.CapacityBytes)
	}
}

func TestInitLatchesFullStream(t *testing.T) {
	med := memfs.New()
	s := &Stream{Name: "t", Path: "t.csv", Header: "h", Capacity: 4}
	if err := med.Append("t.csv", []byte("h\n123456\n")); err != nil {
		t.Fatal(err)
	}
	st := New(med, s)
	if err := st.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if s.Enabled() {
		t.Fatal("stream at capacity must start latched off")
	}
}

func TestAppendRoundTripInOrder(t *testing.T) {
	st, _, s := newTestStore(4096)
	rows := []string{"100,3.300,12.500,a", "150,3.298,11.900,s", "220,3.301,12.700,a"}
	for _, r := range rows {
		if err := st.Append(s, r); err != nil {
			t.Fatalf("Append(%q) error: %v", r, err)
		}
	}
	var buf bytes.Buffer
	if err := st.Dump(s, &buf); err != nil {
		t.Fatalf("Dump error: %v", err)
	}
	want := testHeader + "\n" + strings.Join(rows, "\n") + "\n"
	if buf.String() != want {
		t.Fatalf("Dump = %q, want %q", buf.String(), want)
	}
}

func TestAppendRejectsOversizeRecordUnchanged(t *testing.T) {
	// Bring the stream to capacity-5, then try a record that would land at
	// roughly capacity+50: the call is rejected before any write.
	head := int64(len(testHeader) + 1)
	capacity := head + 45
	st, _, s := newTestStore(capacity)

	fill := strings.Repeat("x", 39) // 39+1 bytes appended -> size = capacity-5
	if err := st.Append(s, fill); err != nil {
		t.Fatalf("fill append error: %v", err)
	}
	before := st.Usage(s).CurrentBytes
	if before != capacity-5 {
		t.Fatalf("setup: size = %d, want %d", before, capacity-5)
	}

	big := strings.Repeat("y", 54)
	err := st.Append(s, big)
	if errcode.Of(err) != errcode.FileFull {
		t.Fatalf("Append = %v, want %v", err, errcode.FileFull)
	}
	if got := st.Usage(s).CurrentBytes; got != before {
		t.Fatalf("size changed on rejected append: %d -> %d", before, got)
	}
	if s.Enabled() {
		t.Fatal("latch must be off after FileFull")
	}
}

func TestLatchMonotonicUntilClear(t *testing.T) {
	st, _, s := newTestStore(int64(len(testHeader)) + 3)
	if err := st.Append(s, "aaaaaaaa"); errcode.Of(err) != errcode.FileFull {
		t.Fatalf("expected FileFull, got %v", err)
	}
	// Any number of further appends is refused without measuring.
	for i := 0; i < 5; i++ {
		if err := st.Append(s, "b"); errcode.Of(err) != errcode.StreamDisabled {
			t.Fatalf("append %d = %v, want %v", i, err, errcode.StreamDisabled)
		}
	}
	if err := st.Clear(s); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if !s.Enabled() {
		t.Fatal("Clear must re-enable the stream")
	}
}

func TestClearIdempotent(t *testing.T) {
	st, _, s := newTestStore(4096)
	_ = st.Append(s, "1,2,3,a")
	for i := 0; i < 3; i++ {
		if err := st.Clear(s); err != nil {
			t.Fatalf("Clear #%d error: %v", i, err)
		}
		u := st.Usage(s)
		if want := int64(len(testHeader) + 1); u.CurrentBytes != want {
			t.Fatalf("Clear #%d: usage = %d, want %d", i, u.CurrentBytes, want)
		}
		if !u.Enabled {
			t.Fatalf("Clear #%d: stream disabled", i)
		}
	}
}

func TestAppendOpenFailureIsTransient(t *testing.T) {
	st, med, s := newTestStore(4096)
	med.AppendErr = errors.New("flash busy")
	if err := st.Append(s, "x"); errcode.Of(err) != errcode.OpenFailed {
		t.Fatalf("Append = %v, want %v", err, errcode.OpenFailed)
	}
	if !s.Enabled() {
		t.Fatal("open failure must not latch the stream off")
	}
	med.AppendErr = nil
	if err := st.Append(s, "x"); err != nil {
		t.Fatalf("retry after transient failure: %v", err)
	}
}

func TestWipeAllRecreatesEveryStream(t *testing.T) {
	med := memfs.New()
	a := &Stream{Name: "a", Path: "a.csv", Header: "ha", Capacity: 10}
	b := &Stream{Name: "b", Path: "b.csv", Header: "hb", Capacity: 4096}
	st := New(med, a, b)
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	// Latch a off.
	if err := st.Append(a, "0123456789"); errcode.Of(err) != errcode.FileFull {
		t.Fatalf("expected FileFull, got %v", err)
	}
	_ = st.Append(b, "row")

	if err := st.WipeAll(); err != nil {
		t.Fatalf("WipeAll error: %v", err)
	}
	for _, s := range []*Stream{a, b} {
		if !s.Enabled() {
			t.Fatalf("stream %s disabled after wipe", s.Name)
		}
		u := st.Usage(s)
		if want := int64(len(s.Header) + 1); u.CurrentBytes != want {
			t.Fatalf("stream %s usage = %d, want %d", s.Name, u.CurrentBytes, want)
		}
	}
}

func TestWipeAllFormatFailureRetainsState(t *testing.T) {
	st, med, s := newTestStore(4096)
	_ = st.Append(s, "keep-me")
	before := st.Usage(s)

	med.FormatErr = errors.New("format rejected")
	if err := st.WipeAll(); errcode.Of(err) != errcode.FormatFailed {
		t.Fatalf("WipeAll = %v, want %v", err, errcode.FormatFailed)
	}
	after := st.Usage(s)
	if after != before {
		t.Fatalf("state changed after failed format: %+v -> %+v", before, after)
	}
}

func TestUsageNeverMutatesLatch(t *testing.T) {
	st, _, s := newTestStore(int64(len(testHeader)) + 2)
	// Stream sits one byte below its ceiling; Usage must never latch it.
	for i := 0; i < 3; i++ {
		_ = st.Usage(s)
	}
	if !s.Enabled() {
		t.Fatal("Usage mutated the enabled latch")
	}
}
