package recorder

import (
	"github.com/google/shlex"

	"datalogger-go/errcode"
	"datalogger-go/services/logstore"
	"datalogger-go/x/fmtx"
)

// Command surface: first token, exact string equality, flat table. Anything
// else is not a command; the caller decides whether to echo it as filtered.
func (r *Recorder) dispatch(line string) bool {
	toks, err := shlex.Split(line)
	if err != nil || len(toks) == 0 {
		return false
	}
	switch toks[0] {
	case "print", "show", "data":
		r.cmdDump(r.tele)
	case "printpower", "showpower", "power":
		r.cmdDump(r.power)
	case "clear", "delete":
		r.cmdClear(r.tele)
	case "clearpower", "deletepower":
		r.cmdClear(r.power)
	case "toggle", "quiet", "verbose":
		r.verbose = !r.verbose
		fmtx.Fprintf(r.console, "verbose: %t\r\n", r.verbose)
	case "status":
		r.cmdStatus()
	case "wipe", "format":
		r.cmdWipe()
	case "help", "?":
		r.cmdHelp()
	default:
		return false
	}
	return true
}

func (r *Recorder) cmdDump(s *logstore.Stream) {
	if err := r.store.Dump(s, r.console); err != nil {
		fmtx.Fprintf(r.console, "error: %s dump failed (%s)\r\n", s.Name, errcode.Of(err))
		return
	}
	fmtx.Fprintf(r.console, "-- end of %s --\r\n", s.Name)
}

func (r *Recorder) cmdClear(s *logstore.Stream) {
	if err := r.store.Clear(s); err != nil {
		fmtx.Fprintf(r.console, "error: %s clear failed (%s), retry\r\n", s.Name, errcode.Of(err))
		return
	}
	fmtx.Fprintf(r.console, "%s cleared\r\n", s.Name)
	r.publishUsage(s)
}

func (r *Recorder) cmdStatus() {
	fmtx.Fprintf(r.console, "uptime_ms: %d\r\n", r.now())
	fmtx.Fprintf(r.console, "topology: %s\r\n", r.cfg.Topology.String())
	fmtx.Fprintf(r.console, "verbose: %t\r\n", r.verbose)
	fmtx.Fprintf(r.console, "sampling: %t\r\n", r.powerLogging())
	for _, s := range r.store.Streams() {
		u := r.store.Usage(s)
		fmtx.Fprintf(r.console, "%s: %d/%d bytes enabled=%t\r\n",
			s.Name, u.CurrentBytes, u.CapacityBytes, u.Enabled)
	}
}

func (r *Recorder) cmdWipe() {
	if err := r.store.WipeAll(); err != nil {
		fmtx.Fprintf(r.console, "error: wipe failed (%s), state retained\r\n", errcode.Of(err))
		return
	}
	fmtx.Fprintf(r.console, "storage wiped\r\n")
	for _, s := range r.store.Streams() {
		r.publishUsage(s)
	}
}

func (r *Recorder) cmdHelp() {
	fmtx.Fprintf(r.console, "commands:\r\n"+
		"  print|show|data            dump telemetry log\r\n"+
		"  printpower|showpower|power dump power log\r\n"+
		"  clear|delete               clear telemetry log\r\n"+
		"  clearpower|deletepower     clear power log\r\n"+
		"  toggle|quiet|verbose       toggle filtered-line echo\r\n"+
		"  status                     uptime and stream usage\r\n"+
		"  wipe|format                erase storage, recreate logs\r\n"+
		"  help|?                     this text\r\n")
}
