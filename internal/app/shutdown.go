package app

import (
	"context"

	"pagedesk/pkg/shutdown"
)

// Shutdown stops the server, drains ingestion and closes the webhook log.
func (a *App) Shutdown(ctx context.Context) error {
	a.setState(stateShuttingDown)
	c := shutdown.Components{
		Server:    a.srvFast,
		Gateway:   a.gateway,
		Retention: a.retention,
		Processor: a.proc,
		Observer:  a.observer,
	}
	if a.deliveries != nil {
		c.Deliveries = a.deliveries
	}
	err := shutdown.ShutdownApp(ctx, c)
	if err == nil {
		a.setState(stateStopped)
	}
	return err
}
