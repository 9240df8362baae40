package grpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yourusername/ledgercore/internal/block"
	"github.com/yourusername/ledgercore/internal/blockchain"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/storage"
	"github.com/yourusername/ledgercore/internal/token"
	"github.com/yourusername/ledgercore/internal/tx"
)

// Server implements ConsensusServer on top of a Blockchain and optionally
// runs a mining loop.
type Server struct {
	bc        *blockchain.Blockchain
	authority *token.Authority
	metrics   *Metrics
	log       *zap.Logger

	// Mining control
	miningMu     sync.Mutex
	stopMining   chan struct{}
	miningDone   chan struct{}
	cancelSearch context.CancelFunc
	blocksMined  int64

	grpcServer *grpc.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAuthority requires a valid permission token on SubmitBlock.
func WithAuthority(a *token.Authority) Option {
	return func(s *Server) { s.authority = a }
}

// WithMetrics records service metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates a new gRPC server
func NewServer(bc *blockchain.Blockchain, opts ...Option) *Server {
	s := &Server{bc: bc, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.log = s.log.Named("grpc")
	s.metrics.tipHeight.Set(float64(bc.Height()))

	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.metrics.UnaryInterceptor(s.log)))
	RegisterConsensusServer(s.grpcServer, s)
	return s
}

// Start listens on a multiaddr such as /ip4/127.0.0.1/tcp/50051 and serves
// until Stop is called.
func (s *Server) Start(address string) error {
	addr, err := multiaddr.NewMultiaddr(address)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", address, err)
	}
	lis, err := manet.Listen(addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.log.Info("gRPC server listening", zap.Stringer("addr", lis.Multiaddr()))
	return s.Serve(manet.NetListener(lis))
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop stops mining and the gRPC server
func (s *Server) Stop() {
	s.StopMining()
	s.grpcServer.GracefulStop()
}

func toStatus(err error) error {
	var code codes.Code
	switch {
	case errs.Is(err, errs.MalformedInput), errs.Is(err, errs.InvalidStructure):
		code = codes.InvalidArgument
	case errs.Is(err, errs.VerificationFailure), errors.Is(err, blockchain.ErrUnknownParent):
		code = codes.FailedPrecondition
	case errors.Is(err, blockchain.ErrDuplicateBlock):
		code = codes.AlreadyExists
	case errors.Is(err, storage.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// authorize checks the permission token carried in the call metadata.
func (s *Server) authorize(ctx context.Context) error {
	if s.authority == nil {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(TokenMetadataKey)
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing permission token")
	}
	signed, err := hex.DecodeString(vals[0])
	if err != nil {
		return status.Error(codes.Unauthenticated, "malformed permission token")
	}
	if _, err := s.authority.Verify(signed, time.Now()); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

// VerifyTransaction implements ConsensusServer.
func (s *Server) VerifyTransaction(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	t, err := tx.Decode(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	ok := s.bc.VerifyTransaction(t)
	s.metrics.txVerified.WithLabelValues(result(ok)).Inc()
	return wrapperspb.Bool(ok), nil
}

// SubmitTransaction implements ConsensusServer.
func (s *Server) SubmitTransaction(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	t, err := tx.Decode(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.bc.SubmitTransaction(t); err != nil {
		return nil, toStatus(err)
	}
	id := t.ID()
	return wrapperspb.Bytes(id[:]), nil
}

// SubmitBlock implements ConsensusServer. A connected block interrupts the
// local nonce search so mining restarts on the new tip.
func (s *Server) SubmitBlock(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	blk, err := block.Decode(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.bc.AddBlock(ctx, blk); err != nil {
		s.metrics.blocks.WithLabelValues(result(false)).Inc()
		return nil, toStatus(err)
	}
	s.metrics.blocks.WithLabelValues(result(true)).Inc()
	s.metrics.tipHeight.Set(float64(blk.Header.NBlock))
	s.interruptSearch()

	id := blk.ID()
	s.log.Info("block accepted", zap.Uint64("nBlock", blk.Header.NBlock), zap.Binary("id", id[:]))
	return wrapperspb.Bytes(id[:]), nil
}

// GetTip implements ConsensusServer.
func (s *Server) GetTip(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return wrapperspb.Bytes(s.bc.Tip().Encode()), nil
}

// GetBlock implements ConsensusServer.
func (s *Server) GetBlock(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if len(req.GetValue()) != 32 {
		return nil, status.Errorf(codes.InvalidArgument, "block id must be 32 bytes, got %d", len(req.GetValue()))
	}
	var id [32]byte
	copy(id[:], req.GetValue())
	blk, err := s.bc.GetBlock(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(blk.Encode()), nil
}

func pkhFromRequest(req *wrapperspb.BytesValue) (crypto.Pkh, error) {
	var pkh crypto.Pkh
	if len(req.GetValue()) != len(pkh) {
		return pkh, status.Errorf(codes.InvalidArgument, "pkh must be %d bytes, got %d", len(pkh), len(req.GetValue()))
	}
	copy(pkh[:], req.GetValue())
	return pkh, nil
}

// GetBalance implements ConsensusServer.
func (s *Server) GetBalance(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	pkh, err := pkhFromRequest(req)
	if err != nil {
		return nil, err
	}
	balance, err := s.bc.Balance(pkh)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(balance), nil
}

// GetSpendable implements ConsensusServer.
func (s *Server) GetSpendable(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	pkh, err := pkhFromRequest(req)
	if err != nil {
		return nil, err
	}
	set, err := s.bc.Spendable(pkh)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(set.Serialize()), nil
}

// GetStatus implements ConsensusServer.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	tip := s.bc.Tip()
	tipID := tip.ID()
	pending := s.bc.Pending()
	ids := make([]interface{}, len(pending))
	for i, t := range pending {
		id := t.ID()
		ids[i] = hex.EncodeToString(id[:])
	}
	st, err := structpb.NewStruct(map[string]interface{}{
		"height":      tip.NBlock,
		"tip":         hex.EncodeToString(tipID[:]),
		"target":      hex.EncodeToString(tip.Target[:]),
		"pending":     ids,
		"mining":      s.Mining(),
		"blocksMined": s.BlocksMined(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// StartMining starts the mining loop. It reports false if the loop is
// already running.
func (s *Server) StartMining() bool {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()
	if s.stopMining != nil {
		return false
	}
	s.stopMining = make(chan struct{})
	s.miningDone = make(chan struct{})
	go s.mineBlocks(s.stopMining, s.miningDone)
	s.log.Info("mining started")
	return true
}

// StopMining stops the mining loop and waits for it to exit.
func (s *Server) StopMining() {
	s.miningMu.Lock()
	stop, done := s.stopMining, s.miningDone
	s.stopMining, s.miningDone = nil, nil
	if stop != nil {
		close(stop)
	}
	if s.cancelSearch != nil {
		s.cancelSearch()
	}
	s.miningMu.Unlock()

	if stop == nil {
		return
	}
	<-done
	s.log.Info("mining stopped")
}

// Mining reports whether the mining loop is running.
func (s *Server) Mining() bool {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()
	return s.stopMining != nil
}

// BlocksMined returns how many blocks the mining loop has connected.
func (s *Server) BlocksMined() int64 {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()
	return s.blocksMined
}

func (s *Server) interruptSearch() {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()
	if s.cancelSearch != nil {
		s.cancelSearch()
	}
}

func (s *Server) mineBlocks(stop, done chan struct{}) {
	defer close(done)
	for {
		ctx, cancel := context.WithCancel(context.Background())
		s.miningMu.Lock()
		select {
		case <-stop:
			s.miningMu.Unlock()
			cancel()
			return
		default:
		}
		s.cancelSearch = cancel
		s.miningMu.Unlock()

		blk, err := s.bc.MineBlock(ctx)
		cancel()

		switch {
		case err == nil:
			s.miningMu.Lock()
			s.blocksMined++
			s.miningMu.Unlock()
			s.metrics.blocksMined.Inc()
			s.metrics.tipHeight.Set(float64(blk.Header.NBlock))
		case errors.Is(err, context.Canceled), errors.Is(err, blockchain.ErrUnknownParent):
			// Tip moved underneath the search; rebuild the template.
		default:
			s.log.Warn("mining failed", zap.Error(err))
			select {
			case <-stop:
				return
			case <-time.After(time.Second):
			}
		}
	}
}
