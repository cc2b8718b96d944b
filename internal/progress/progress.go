// Package progress renders a single object transfer's progress to a
// terminal using mpb — one bar for the single DownloadFile/UploadFile call
// driving it.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Bar renders one transfer's progress. It is safe to drive from the
// synchronous progress/dataTransferStatusChange callbacks the engine invokes
// from its worker goroutines — SetBytes (and SetFraction through it)
// serializes on an internal mutex, and the mpb calls it makes are themselves
// goroutine-safe.
type Bar struct {
	mu         sync.Mutex
	container  *mpb.Progress
	bar        *mpb.Bar
	isTerminal bool
	total      int64
	startTime  time.Time
	lastBytes  int64
	lastUpdate time.Time
}

// New creates a Bar for a transfer named label moving total bytes. On a
// non-terminal stderr (e.g. redirected to a file or piped), bar rendering is
// suppressed and only the start/completion lines are printed.
func New(label string, total int64) *Bar {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var container *mpb.Progress
	if isTerminal {
		container = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		container = mpb.New(mpb.WithOutput(io.Discard))
		fmt.Fprintf(os.Stderr, "%s: %.1f MiB\n", label, float64(total)/(1024*1024))
	}

	b := &Bar{
		container:  container,
		isTerminal: isTerminal,
		total:      total,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if isTerminal {
		b.bar = container.New(total,
			mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("]"),
			mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
				decor.Name("  ETA "),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}

	return b
}

// SetFraction moves the bar to the given completion fraction in [0,1],
// matching the shape of a progress(percent, checkpoint) callback.
func (b *Bar) SetFraction(fraction float64) {
	b.SetBytes(int64(fraction * float64(b.total)))
}

// SetBytes moves the bar to an absolute consumed-byte count, the shape of a
// dataTransferStatusChange(consumedBytes, totalBytes) callback.
func (b *Bar) SetBytes(consumed int64) {
	if b.bar == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	delta := consumed - atomic.LoadInt64(&b.lastBytes)
	if delta == 0 && now.Sub(b.lastUpdate) < 150*time.Millisecond {
		return
	}
	b.bar.EwmaIncrBy(int(delta), now.Sub(b.lastUpdate))
	atomic.StoreInt64(&b.lastBytes, consumed)
	b.lastUpdate = now
}

// Complete marks the transfer done (err == nil) or failed, printing a
// one-line summary above the (now-removed) bar.
func (b *Bar) Complete(err error) {
	elapsed := time.Since(b.startTime)
	if b.bar != nil {
		if err == nil {
			b.bar.SetCurrent(b.total)
		}
		b.bar.Abort(err != nil)
	}

	if err == nil {
		speed := float64(b.total) / elapsed.Seconds() / (1024 * 1024)
		msg := fmt.Sprintf("done (%.1f MiB, %s, %.1f MiB/s)\n", float64(b.total)/(1024*1024), elapsed.Round(time.Second), speed)
		b.writeLine(msg)
	} else {
		b.writeLine(fmt.Sprintf("failed: %v\n", err))
	}
}

// Wait blocks until the bar's render goroutine has finished.
func (b *Bar) Wait() {
	if b.container != nil {
		b.container.Wait()
	}
}

// Writer returns an io.Writer safe to log through while the bar is active.
func (b *Bar) Writer() io.Writer {
	if b.isTerminal && b.container != nil {
		return b.container
	}
	return os.Stderr
}

func (b *Bar) writeLine(msg string) {
	if b.isTerminal && b.container != nil {
		b.container.Write([]byte(msg))
		return
	}
	fmt.Fprint(os.Stderr, msg)
}
