package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/ledgercore/internal/blockchain"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/grpc"
	"github.com/yourusername/ledgercore/internal/pow"
	"github.com/yourusername/ledgercore/internal/script"
	"github.com/yourusername/ledgercore/internal/storage"
	"github.com/yourusername/ledgercore/internal/token"
)

func main() {
	dbPath := flag.String("db", "./data/chain", "Path to the block and UTXO database")
	headersPath := flag.String("headers", "./data/headers.db", "Path to the header index")
	listen := flag.String("listen", "/ip4/127.0.0.1/tcp/50051", "gRPC listen multiaddr")
	metricsAddr := flag.String("metrics", ":9100", "Prometheus listen address, empty to disable")
	fresh := flag.Bool("fresh", false, "Start with a fresh blockchain")
	validate := flag.Bool("validate", false, "Re-check every stored block and output at startup")
	mine := flag.Bool("mine", false, "Run the mining loop")
	minerKey := flag.String("miner-key", "", "Hex private key receiving coinbase outputs (random if empty)")
	targetBits := flag.Uint("target-bits", pow.DefaultTargetBits, "Leading zero bits of the genesis target")
	authKey := flag.String("auth-key", "", "Hex 32-byte key; when set SubmitBlock requires a permission token")
	workers := flag.Int("workers", 0, "Parallel transaction verifiers (0 = GOMAXPROCS)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, options{
		dbPath:      *dbPath,
		headersPath: *headersPath,
		listen:      *listen,
		metricsAddr: *metricsAddr,
		fresh:       *fresh,
		validate:    *validate,
		mine:        *mine,
		minerKey:    *minerKey,
		targetBits:  *targetBits,
		authKey:     *authKey,
		workers:     *workers,
	}); err != nil {
		log.Fatal("node failed", zap.Error(err))
	}
}

type options struct {
	dbPath, headersPath string
	listen, metricsAddr string
	fresh, mine         bool
	validate            bool
	minerKey, authKey   string
	targetBits          uint
	workers             int
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func loadMinerKey(hexKey string) (*crypto.KeyPair, error) {
	if hexKey == "" {
		return crypto.NewKeyPair()
	}
	priv, err := crypto.PrivKeyFromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid miner key: %w", err)
	}
	return crypto.KeyPairFromPrivKey(priv), nil
}

func loadAuthority(hexKey string) (*token.Authority, error) {
	if hexKey == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(hexKey)
	if err != nil || len(b) != 32 {
		return nil, errors.New("auth key must be 32 hex-encoded bytes")
	}
	var key [32]byte
	copy(key[:], b)
	return token.NewAuthorityWithKey(key), nil
}

func run(log *zap.Logger, opts options) error {
	miner, err := loadMinerKey(opts.minerKey)
	if err != nil {
		return err
	}
	authority, err := loadAuthority(opts.authKey)
	if err != nil {
		return err
	}
	minerPkh := crypto.PublicKeyHash(miner.PubKey)

	store, err := storage.NewStorage(opts.dbPath, log)
	if err != nil {
		return err
	}
	if opts.fresh {
		log.Info("starting with a fresh blockchain")
		if err := errors.Join(store.Clear(), os.RemoveAll(opts.headersPath)); err != nil {
			store.Close()
			return err
		}
	}
	headers, err := storage.OpenHeaderIndex(opts.headersPath)
	if err != nil {
		store.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bc, err := blockchain.NewBlockchain(ctx, store, headers, blockchain.Config{
		GenesisTarget:  pow.TargetFromBits(opts.targetBits),
		CoinbaseScript: script.AddressOutput(minerPkh),
		Workers:        opts.workers,
	}, log)
	if err != nil {
		headers.Close()
		store.Close()
		return err
	}
	defer bc.Close()

	if opts.validate {
		if err := bc.ValidateChain(); err != nil {
			return fmt.Errorf("chain validation failed: %w", err)
		}
	}

	tip := bc.Tip()
	tipID := tip.ID()
	log.Info("blockchain initialized",
		zap.Uint64("height", tip.NBlock),
		zap.String("tip", hex.EncodeToString(tipID[:])),
		zap.String("miner", crypto.EncodeAddress(minerPkh)))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverOpts := []grpc.Option{grpc.WithLogger(log), grpc.WithMetrics(grpc.NewMetrics(reg))}
	if authority != nil {
		serverOpts = append(serverOpts, grpc.WithAuthority(authority))
		log.Info("SubmitBlock requires a permission token")
	}
	server := grpc.NewServer(bc, serverOpts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(opts.listen)
	})

	var metricsSrv *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("metrics listening", zap.String("addr", opts.metricsAddr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if opts.mine {
		server.StartMining()
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		server.Stop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("node stopped", zap.Uint64("height", bc.Height()))
	return nil
}
