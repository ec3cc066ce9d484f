package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/metrics"
)

// Source produces packet records for one capture session. The supervisor owns
// exactly one source at a time.
type Source interface {
	// Open acquires the source's resources; it fails fast without blocking.
	Open(ctx context.Context) error
	// Run blocks, emitting records until the source ends or ctx is done.
	// A nil error is a clean end of stream; non-nil means abnormal
	// termination.
	Run(ctx context.Context, emit func(model.PacketRecord), stderr func(string)) error
	// Shutdown stops the source gracefully, escalating after the grace
	// period.
	Shutdown(grace time.Duration)
}

// ProcessSource runs the external capture executable and parses its
// line-oriented output.
type ProcessSource struct {
	bin    string
	args   []string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	errOut io.ReadCloser
	done   chan struct{} // closed when Run has reaped the child
}

// NewProcessSource builds a source spawning bin against the given target
// host and interface. The interface name "auto" (or empty) maps to "any".
func NewProcessSource(bin, target, iface string) *ProcessSource {
	if iface == "" || strings.EqualFold(iface, "auto") {
		iface = "any"
	}
	args := []string{
		"-i", iface,
		"-f", "host " + target,
		"-l",
		"-T", "fields",
		"-e", "frame.time_epoch",
		"-e", "ip.src",
		"-e", "ip.dst",
		"-e", "ip.proto",
		"-e", "tcp.srcport",
		"-e", "tcp.dstport",
		"-e", "udp.srcport",
		"-e", "udp.dstport",
		"-e", "frame.len",
	}
	return &ProcessSource{bin: bin, args: args, done: make(chan struct{})}
}

// Open spawns the capture process and wires its pipes.
func (p *ProcessSource) Open(ctx context.Context) error {
	cmd := exec.Command(p.bin, p.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout pipe: %w", err)
	}
	errOut, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("capture stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCaptureStartFailure, err)
	}

	p.cmd = cmd
	p.stdout = stdout
	p.errOut = errOut
	return nil
}

// Run drains stdout into the parser and stderr into the error callback, then
// reaps the child. A process exit while ctx is still live is abnormal.
func (p *ProcessSource) Run(ctx context.Context, emit func(model.PacketRecord), stderr func(string)) error {
	defer close(p.done)

	errDone := make(chan struct{})
	go func() {
		defer close(errDone)
		scanner := bufio.NewScanner(p.errOut)
		for scanner.Scan() {
			stderr(scanner.Text())
		}
	}()

	scanner := bufio.NewScanner(p.stdout)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	for scanner.Scan() {
		rec, err := ParseLine(scanner.Text(), time.Now())
		if err != nil {
			metrics.LinesDropped.Inc()
			continue
		}
		metrics.PacketsParsed.Inc()
		emit(rec)
	}
	<-errDone

	err := p.cmd.Wait()
	if ctx.Err() != nil {
		return nil // shut down on request
	}
	if err != nil {
		return fmt.Errorf("capture process exited: %w", err)
	}
	return fmt.Errorf("capture process exited unexpectedly")
}

// Shutdown sends SIGTERM and force-kills only if the child outlives the grace
// period. Run's cmd.Wait reaps the child.
func (p *ProcessSource) Shutdown(grace time.Duration) {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	proc := p.cmd.Process
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return // already gone
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C:
			proc.Kill()
		}
	}()
}
