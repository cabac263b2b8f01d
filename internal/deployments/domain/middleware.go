package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/contraverify/internal/addressbook"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Networks(ctx context.Context) ([]NetworkInfo, error) {
	start := time.Now()
	infos, err := m.next.Networks(ctx)
	m.logger.Debug("Networks",
		"count", len(infos),
		"duration", time.Since(start),
		"error", err,
	)
	return infos, err
}

func (m *loggingMiddleware) Network(ctx context.Context, name string) (*NetworkInfo, error) {
	start := time.Now()
	info, err := m.next.Network(ctx, name)
	m.logger.Debug("Network",
		"network", name,
		"duration", time.Since(start),
		"error", err,
	)
	return info, err
}

func (m *loggingMiddleware) Deployments(network string) ([]Deployment, error) {
	start := time.Now()
	deployments, err := m.next.Deployments(network)
	m.logger.Debug("Deployments",
		"network", network,
		"count", len(deployments),
		"duration", time.Since(start),
		"error", err,
	)
	return deployments, err
}

func (m *loggingMiddleware) Deployment(network, name string) (*Deployment, error) {
	start := time.Now()
	d, err := m.next.Deployment(network, name)
	m.logger.Debug("Deployment",
		"network", network,
		"name", name,
		"duration", time.Since(start),
		"error", err,
	)
	return d, err
}

func (m *loggingMiddleware) AddressNames() ([]string, error) {
	names, err := m.next.AddressNames()
	m.logger.Debug("AddressNames", "count", len(names), "error", err)
	return names, err
}

func (m *loggingMiddleware) Addresses(name string) ([]addressbook.Entry, error) {
	entries, err := m.next.Addresses(name)
	m.logger.Debug("Addresses", "name", name, "count", len(entries), "error", err)
	return entries, err
}

func (m *loggingMiddleware) Address(name, network string) (string, error) {
	addr, err := m.next.Address(name, network)
	m.logger.Debug("Address", "name", name, "network", network, "error", err)
	return addr, err
}
