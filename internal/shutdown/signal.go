package shutdown

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mvplabs/process-dispatcher/internal/logging"
)

// Install subscribes the scope to SIGTERM, SIGINT and SIGQUIT. The first
// signal to arrive cancels the scope; later signals are ignored because
// the latch is one-shot. Returns after the watcher goroutine is running.
func Install(scope *Scope) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		sig := <-ch
		logging.Logger().Warn("received termination signal", "signal", sig.String())
		scope.Cancel()
	}()
}
