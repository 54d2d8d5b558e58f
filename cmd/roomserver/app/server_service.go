package app

import (
	"context"
	"fmt"

	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
)

// NewServerService wraps a dskit server.Server in a services.Service, the
// same shape as cmd/tempo/app.NewServerService: Run blocks until the
// server stops or the context is cancelled, and stopping calls Shutdown to
// unblock it.
func NewServerService(serv *server.Server) services.Service {
	serverDone := make(chan error, 1)

	runningFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- serv.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}
			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		serv.Shutdown()
		<-serverDone
		return nil
	}

	return services.NewBasicService(nil, runningFn, stoppingFn)
}
