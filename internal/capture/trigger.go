package capture

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"
)

// Trigger is one physical capture event.
type Trigger struct {
	Source string
	At     time.Time
}

// offer sends t without blocking. A full channel means a trigger is already
// pending, so t is dropped. A pending trigger that was received while a cycle
// ran is rejected by the Gate when it is handed over.
func offer(out chan<- Trigger, t Trigger) bool {
	select {
	case out <- t:
		return true
	default:
		return false
	}
}

// SignalSource emits a trigger for every delivery of sig until ctx ends.
func SignalSource(ctx context.Context, out chan<- Trigger, sig ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig...)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-ch:
			offer(out, Trigger{Source: "signal:" + s.String(), At: time.Now()})
		}
	}
}

// LineSource emits a trigger for every non-empty line read from r, such as
// stdin or a pipe fed by a GPIO helper. It returns when r is exhausted.
func LineSource(ctx context.Context, r io.Reader, out chan<- Trigger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		offer(out, Trigger{Source: "line", At: time.Now()})
	}
	return scanner.Err()
}
