// Package soroban implements the ledger client against a Soroban RPC
// endpoint. Events are read by streaming closed ledgers through the RPC
// ledger backend and extracting contract events from each transaction.
package soroban

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	rpcclient "github.com/stellar/go/clients/rpcclient"
	"github.com/stellar/go/ingest"
	"github.com/stellar/go/ingest/ledgerbackend"
	"github.com/stellar/go/xdr"
	"golang.org/x/time/rate"

	"staysync/internal/ledger"
	"staysync/internal/models"
)

// Config holds the connection settings for the Soroban backend.
type Config struct {
	RPCServerURL      string
	NetworkPassphrase string
	// BufferSize is the ledger prefetch window of the RPC backend.
	BufferSize uint32
	// RequestsPerSecond bounds ledger fetches against the RPC endpoint.
	RequestsPerSecond float64
}

// Client implements ledger.Client over Soroban RPC. It is read-only:
// submitting contract calls requires a signing key this service does not
// hold, so SubmitContractCall reports ErrSubmitUnavailable.
type Client struct {
	rpc               *rpcclient.Client
	backend           ledgerbackend.LedgerBackend
	networkPassphrase string
	limiter           *rate.Limiter

	mu       sync.Mutex
	prepared bool
}

// New creates a Client for the given endpoint.
func New(cfg Config) *Client {
	bufferSize := cfg.BufferSize
	if bufferSize == 0 {
		bufferSize = 10
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	backend := ledgerbackend.NewRPCLedgerBackend(ledgerbackend.RPCLedgerBackendOptions{
		RPCServerURL: cfg.RPCServerURL,
		BufferSize:   bufferSize,
		HttpClient:   &http.Client{},
	})

	return &Client{
		rpc:               rpcclient.NewClient(cfg.RPCServerURL, &http.Client{}),
		backend:           backend,
		networkPassphrase: cfg.NetworkPassphrase,
		limiter:           rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// LatestSequence returns the latest closed ledger reported by the RPC
// health endpoint.
func (c *Client) LatestSequence(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	health, err := c.rpc.GetHealth(ctx)
	if err != nil {
		return 0, &ledger.TransientError{Op: "get_health", Err: err}
	}
	return uint64(health.LatestLedger), nil
}

// QueryEvents streams ledgers from fromSequence up to the current latest
// and extracts the contract's events in order.
func (c *Client) QueryEvents(ctx context.Context, contractAddress string, fromSequence uint64) ([]models.SyncEvent, error) {
	latest, err := c.LatestSequence(ctx)
	if err != nil {
		return nil, err
	}
	if fromSequence == 0 {
		fromSequence = latest
	}
	if fromSequence > latest {
		return nil, nil
	}

	if err := c.prepare(ctx, uint32(fromSequence)); err != nil {
		return nil, err
	}

	var out []models.SyncEvent
	for seq := fromSequence; seq <= latest; seq++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		meta, err := c.backend.GetLedger(ctx, uint32(seq))
		if err != nil {
			return nil, &ledger.TransientError{Op: "get_ledger", Err: err}
		}

		events, err := c.extractLedgerEvents(meta, contractAddress, seq)
		if err != nil {
			return nil, fmt.Errorf("failed to extract events from ledger %d: %w", seq, err)
		}
		out = append(out, events...)
	}

	if len(out) > 0 {
		slog.Debug("Soroban events fetched",
			"contract", contractAddress,
			"from", fromSequence,
			"to", latest,
			"count", len(out),
		)
	}
	return out, nil
}

// SubmitContractCall is not supported by this read-only backend.
func (c *Client) SubmitContractCall(ctx context.Context, method string, args map[string]any) (string, error) {
	return "", ledger.ErrSubmitUnavailable
}

// Close shuts down the ledger backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

// prepare opens an unbounded streaming range starting at start. Idempotent
// after the first successful call.
func (c *Client) prepare(ctx context.Context, start uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prepared {
		return nil
	}
	if err := c.backend.PrepareRange(ctx, ledgerbackend.UnboundedRange(start)); err != nil {
		return &ledger.TransientError{Op: "prepare_range", Err: err}
	}
	c.prepared = true
	return nil
}

// extractLedgerEvents walks every successful Soroban transaction in the
// ledger and collects the tracked contract's events.
func (c *Client) extractLedgerEvents(meta xdr.LedgerCloseMeta, contractAddress string, seq uint64) ([]models.SyncEvent, error) {
	reader, err := ingest.NewLedgerTransactionReaderFromLedgerCloseMeta(c.networkPassphrase, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction reader: %w", err)
	}
	defer reader.Close()

	var out []models.SyncEvent
	for {
		tx, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !tx.Successful() || !tx.IsSorobanTx() {
			continue
		}

		events, err := tx.GetContractEvents()
		if err != nil {
			slog.Warn("Failed to read contract events", "tx_hash", tx.Hash.HexString(), "error", err)
			continue
		}

		for i, event := range events {
			parsed, ok := parseContractEvent(event, tx.Hash.HexString(), i, seq)
			if !ok {
				continue
			}
			if parsed.ContractAddress != contractAddress {
				continue
			}
			out = append(out, parsed)
		}
	}
	return out, nil
}
