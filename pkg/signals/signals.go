package signals

import (
	"os"
	"os/signal"
	"syscall"
)

// OnSignal invokes the given action, in a separate goroutine, upon the first SIGINT or SIGTERM.
func OnSignal(action func(sig os.Signal)) {
	notify(action, syscall.SIGINT, syscall.SIGTERM)
}

func notify(action func(sig os.Signal), signals ...os.Signal) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)

	go func() {
		sig := <-sigCh
		signal.Stop(sigCh)
		action(sig)
	}()
}
