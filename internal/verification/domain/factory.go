package domain

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/explorer"
	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/rpc"
)

// ExplorerClients builds explorer clients from the verifier settings.
// Clients for the same endpoint share one request limiter, so concurrent
// runs against one explorer stay within its rate limit.
func ExplorerClients(cfg config.VerifyConfig, logger *slog.Logger) ExplorerFactory {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(apiURL string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[apiURL]
		if !ok {
			r := cfg.ExplorerRate
			if r <= 0 {
				r = explorer.DefaultRate
			}
			l = rate.NewLimiter(rate.Limit(r), 1)
			limiters[apiURL] = l
		}
		return l
	}

	return func(ex *networks.Explorer) Explorer {
		opts := []explorer.Option{
			explorer.WithLimiter(limiterFor(ex.APIURL)),
			explorer.WithLogger(logger),
		}
		if cfg.ExplorerTimeout > 0 {
			opts = append(opts, explorer.WithTimeout(cfg.ExplorerTimeout))
		}
		if cfg.ExplorerRetries > 0 {
			opts = append(opts, explorer.WithRetries(cfg.ExplorerRetries))
		}
		return explorer.NewClient(ex.APIURL, ex.APIKey, opts...)
	}
}

// EtherscanSubmitters builds an EtherscanSubmitter per run. With
// CheckBytecode set and an RPC URL configured for the network, deployed
// code is compared with the artifact before submitting.
func EtherscanSubmitters(cfg config.VerifyConfig, logger *slog.Logger) SubmitterFactory {
	return func(t Target, ex Explorer) Submitter {
		sc := SubmitterConfig{
			PollInterval: cfg.PollInterval,
			PollAttempts: cfg.PollAttempts,
			Logger:       logger,
		}
		if cfg.CheckBytecode && t.Network != nil && t.Network.URL != "" {
			sc.Code = dialingCodeReader{url: t.Network.URL}
		}
		return NewEtherscanSubmitter(ex, t.Dir, sc)
	}
}

// dialingCodeReader opens a connection per lookup.
type dialingCodeReader struct {
	url string
}

func (d dialingCodeReader) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	c, err := rpc.Dial(ctx, d.url)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.CodeAt(ctx, address)
}

// NewFromConfig wires a Runner from the loaded configuration. rec may be nil.
func NewFromConfig(cfg *config.Config, resolver ExplorerResolver, rec RunRecorder, logger *slog.Logger) *Runner {
	opts := []Option{WithLogger(logger)}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}
	return NewRunner(
		cfg.Verify.DeploymentsRoot,
		resolver,
		ExplorerClients(cfg.Verify, logger),
		EtherscanSubmitters(cfg.Verify, logger),
		opts...,
	)
}
