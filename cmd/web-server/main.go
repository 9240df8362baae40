package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/zap"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yourusername/ledgercore/internal/block"
	"github.com/yourusername/ledgercore/internal/grpc"
)

// Response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type gateway struct {
	client *grpc.ConsensusClient
}

// CORS middleware
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Helper to send JSON response
func sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, statusCode int, err error) {
	sendJSON(w, statusCode, APIResponse{Success: false, Error: err.Error()})
}

// rpcStatus maps a gRPC failure onto an HTTP status.
func rpcStatus(err error) int {
	switch status.Code(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func headerJSON(h *block.Header) map[string]interface{} {
	id := h.ID()
	return map[string]interface{}{
		"id":         hex.EncodeToString(id[:]),
		"nBlock":     h.NBlock,
		"prevId":     hex.EncodeToString(h.PrevBlockID[:]),
		"merkleRoot": hex.EncodeToString(h.MerkleRoot[:]),
		"timestamp":  h.Timestamp,
		"target":     hex.EncodeToString(h.Target[:]),
		"nonce":      hex.EncodeToString(h.Nonce[:]),
		"hex":        h.ToHex(),
	}
}

func blockJSON(blk *block.Block) map[string]interface{} {
	out := headerJSON(&blk.Header)
	ids := make([]string, len(blk.Txs))
	for i, t := range blk.Txs {
		id := t.ID()
		ids[i] = hex.EncodeToString(id[:])
	}
	out["txs"] = ids
	out["raw"] = blk.ToHex()
	return out
}

// Health check handler
func healthHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		},
	})
}

func (g *gateway) tip(ctx context.Context) (*block.Header, error) {
	resp, err := g.client.GetTip(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	return block.DecodeHeader(resp.GetValue())
}

func (g *gateway) getBlock(ctx context.Context, id []byte) (*block.Block, error) {
	resp, err := g.client.GetBlock(ctx, wrapperspb.Bytes(id))
	if err != nil {
		return nil, err
	}
	return block.Decode(resp.GetValue())
}

func (g *gateway) tipHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h, err := g.tip(ctx)
	if err != nil {
		sendError(w, rpcStatus(err), err)
		return
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: headerJSON(h)})
}

func (g *gateway) statusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := g.client.GetStatus(ctx, &emptypb.Empty{})
	if err != nil {
		sendError(w, rpcStatus(err), err)
		return
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: st.AsMap()})
}

// Get recent blocks by walking back from the tip
func (g *gateway) recentBlocksHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	count := 10
	if c, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && c > 0 {
		count = c
	}

	h, err := g.tip(ctx)
	if err != nil {
		sendError(w, rpcStatus(err), err)
		return
	}
	id := h.ID()
	blocks := []map[string]interface{}{}
	for len(blocks) < count {
		blk, err := g.getBlock(ctx, id[:])
		if err != nil {
			sendError(w, rpcStatus(err), err)
			return
		}
		blocks = append(blocks, blockJSON(blk))
		if blk.IsGenesis() {
			break
		}
		id = blk.Header.PrevBlockID
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: blocks})
}

func (g *gateway) blockHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := hex.DecodeString(strings.TrimPrefix(r.URL.Path, "/api/block/"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	blk, err := g.getBlock(ctx, id)
	if err != nil {
		sendError(w, rpcStatus(err), err)
		return
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: blockJSON(blk)})
}

func readHexBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimSpace(string(body)))
}

// Submit a hex-encoded transaction
func (g *gateway) submitTxHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw, err := readHexBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, err := g.client.SubmitTransaction(ctx, wrapperspb.Bytes(raw))
	if err != nil {
		sendError(w, rpcStatus(err), err)
		return
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"id": hex.EncodeToString(resp.GetValue())}})
}

func (g *gateway) verifyTxHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw, err := readHexBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, err := g.client.VerifyTransaction(ctx, wrapperspb.Bytes(raw))
	if err != nil {
		sendError(w, rpcStatus(err), err)
		return
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]bool{"valid": resp.GetValue()}})
}

func main() {
	rpcAddr := flag.String("rpc", "/ip4/127.0.0.1/tcp/50051", "Node gRPC multiaddr")
	httpAddr := flag.String("http", ":8080", "HTTP listen address")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	maddr, err := multiaddr.NewMultiaddr(*rpcAddr)
	if err != nil {
		log.Fatal("invalid rpc multiaddr", zap.Error(err))
	}
	netAddr, err := manet.ToNetAddr(maddr)
	if err != nil {
		log.Fatal("unsupported rpc multiaddr", zap.Error(err))
	}
	conn, err := ggrpc.Dial(netAddr.String(), ggrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("failed to connect to node", zap.Error(err))
	}
	defer conn.Close()

	g := &gateway{client: grpc.NewConsensusClient(conn)}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", corsMiddleware(healthHandler))
	mux.HandleFunc("/api/tip", corsMiddleware(g.tipHandler))
	mux.HandleFunc("/api/status", corsMiddleware(g.statusHandler))
	mux.HandleFunc("/api/blocks", corsMiddleware(g.recentBlocksHandler))
	mux.HandleFunc("/api/block/", corsMiddleware(g.blockHandler))
	mux.HandleFunc("/api/tx", corsMiddleware(g.submitTxHandler))
	mux.HandleFunc("/api/tx/verify", corsMiddleware(g.verifyTxHandler))

	srv := &http.Server{Addr: *httpAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("web server listening", zap.String("addr", *httpAddr), zap.String("rpc", netAddr.String()))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("web server failed", zap.Error(err))
	}
}
