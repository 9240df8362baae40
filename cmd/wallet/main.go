package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yourusername/ledgercore/internal/block"
	"github.com/yourusername/ledgercore/internal/blockchain"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/grpc"
	"github.com/yourusername/ledgercore/internal/token"
	"github.com/yourusername/ledgercore/internal/tx"
	"github.com/yourusername/ledgercore/internal/utxo"
)

const defaultRPC = "/ip4/127.0.0.1/tcp/50051"

func main() {
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	addressCmd := flag.NewFlagSet("address", flag.ExitOnError)
	balanceCmd := flag.NewFlagSet("balance", flag.ExitOnError)
	tipCmd := flag.NewFlagSet("tip", flag.ExitOnError)
	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	submitBlockCmd := flag.NewFlagSet("submit-block", flag.ExitOnError)
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)

	addressKey := addressCmd.String("key", "", "Hex private key")
	balanceAddress := balanceCmd.String("address", "", "Address to check balance")
	balanceRPC := balanceCmd.String("rpc", defaultRPC, "Node gRPC multiaddr")
	tipRPC := tipCmd.String("rpc", defaultRPC, "Node gRPC multiaddr")
	submitRPC := submitCmd.String("rpc", defaultRPC, "Node gRPC multiaddr")
	submitTx := submitCmd.String("tx", "", "Hex-encoded signed transaction")
	sendKey := sendCmd.String("key", "", "Hex private key of the sender")
	sendTo := sendCmd.String("to", "", "Recipient address")
	sendAmount := sendCmd.Uint64("amount", 0, "Amount to send")
	sendRPC := sendCmd.String("rpc", defaultRPC, "Node gRPC multiaddr")
	statusRPC := statusCmd.String("rpc", defaultRPC, "Node gRPC multiaddr")
	submitBlockRPC := submitBlockCmd.String("rpc", defaultRPC, "Node gRPC multiaddr")
	submitBlockHex := submitBlockCmd.String("block", "", "Hex-encoded mined block")
	submitBlockKey := submitBlockCmd.String("auth-key", "", "Hex 32-byte node auth key, when the node requires tokens")
	tokenKey := tokenCmd.String("auth-key", "", "Hex 32-byte node auth key")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		createWallet()

	case "address":
		addressCmd.Parse(os.Args[2:])
		if *addressKey == "" {
			fmt.Println("Error: --key is required")
			addressCmd.PrintDefaults()
			os.Exit(1)
		}
		showAddress(*addressKey)

	case "balance":
		balanceCmd.Parse(os.Args[2:])
		if *balanceAddress == "" {
			fmt.Println("Error: --address is required")
			balanceCmd.PrintDefaults()
			os.Exit(1)
		}
		checkBalance(*balanceRPC, *balanceAddress)

	case "tip":
		tipCmd.Parse(os.Args[2:])
		showTip(*tipRPC)

	case "submit":
		submitCmd.Parse(os.Args[2:])
		if *submitTx == "" {
			fmt.Println("Error: --tx is required")
			submitCmd.PrintDefaults()
			os.Exit(1)
		}
		submitTransaction(*submitRPC, *submitTx)

	case "send":
		sendCmd.Parse(os.Args[2:])
		if *sendKey == "" || *sendTo == "" || *sendAmount == 0 {
			fmt.Println("Error: --key, --to and --amount are required")
			sendCmd.PrintDefaults()
			os.Exit(1)
		}
		send(*sendRPC, *sendKey, *sendTo, *sendAmount)

	case "status":
		statusCmd.Parse(os.Args[2:])
		showStatus(*statusRPC)

	case "submit-block":
		submitBlockCmd.Parse(os.Args[2:])
		if *submitBlockHex == "" {
			fmt.Println("Error: --block is required")
			submitBlockCmd.PrintDefaults()
			os.Exit(1)
		}
		submitBlock(*submitBlockRPC, *submitBlockHex, *submitBlockKey)

	case "token":
		tokenCmd.Parse(os.Args[2:])
		issueToken(*tokenKey)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger wallet")
	fmt.Println("\nUsage:")
	fmt.Println("  wallet create                              Create a new key pair")
	fmt.Println("  wallet address --key <hex>                 Show the address of a private key")
	fmt.Println("  wallet balance --address <addr>            Sum the confirmed outputs of an address")
	fmt.Println("  wallet tip                                 Show the node's best header")
	fmt.Println("  wallet status                              Show the node's pool and miner")
	fmt.Println("  wallet submit --tx <hex>                   Submit a signed transaction")
	fmt.Println("  wallet submit-block --block <hex> [--auth-key <hex>]")
	fmt.Println("                                             Submit a mined block")
	fmt.Println("  wallet send --key <hex> --to <addr> --amount <n>")
	fmt.Println("                                             Build, sign and submit a transfer")
	fmt.Println("\nNode commands accept --rpc <multiaddr> (default " + defaultRPC + ").")
	fmt.Println("  wallet token --auth-key <hex>              Issue a block submission token")
}

func createWallet() {
	kp, err := crypto.NewKeyPair()
	if err != nil {
		log.Fatalf("Failed to create key pair: %v", err)
	}

	fmt.Println("\n✓ New Key Pair Created")
	fmt.Println("==========================================")
	fmt.Printf("Address:     %s\n", crypto.EncodeAddress(crypto.PublicKeyHash(kp.PubKey)))
	fmt.Printf("Public Key:  %x\n", kp.PubKey.Bytes())
	fmt.Printf("Private Key: %s\n", kp.PrivKey.Hex())
	fmt.Println("==========================================")
	fmt.Println("\n⚠️  IMPORTANT: Save your private key securely!")
	fmt.Println("Anyone with your private key can access your funds.")
}

func showAddress(hexKey string) {
	priv, err := crypto.PrivKeyFromHex(hexKey)
	if err != nil {
		log.Fatalf("Invalid private key: %v", err)
	}
	pkh := crypto.PublicKeyHash(priv.PubKey())
	fmt.Printf("Address: %s\n", crypto.EncodeAddress(pkh))
	fmt.Printf("PKH:     %x\n", pkh[:])
}

func dial(maddr string) (*grpc.ConsensusClient, func()) {
	addr, err := multiaddr.NewMultiaddr(maddr)
	if err != nil {
		log.Fatalf("Invalid multiaddr: %v", err)
	}
	netAddr, err := manet.ToNetAddr(addr)
	if err != nil {
		log.Fatalf("Unsupported multiaddr: %v", err)
	}
	conn, err := ggrpc.Dial(netAddr.String(), ggrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	return grpc.NewConsensusClient(conn), func() { conn.Close() }
}

func showTip(maddr string) {
	client, closeConn := dial(maddr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := client.GetTip(ctx, &emptypb.Empty{})
	if err != nil {
		log.Fatalf("GetTip failed: %v", err)
	}
	h, err := block.DecodeHeader(resp.GetValue())
	if err != nil {
		log.Fatalf("Invalid header from node: %v", err)
	}
	id := h.ID()
	fmt.Printf("Height: %d\n", h.NBlock)
	fmt.Printf("Tip:    %x\n", id[:])
	fmt.Printf("Target: %x\n", h.Target[:])
}

func checkBalance(maddr, address string) {
	pkh, err := crypto.DecodeAddress(address)
	if err != nil {
		log.Fatalf("Invalid address: %v", err)
	}
	client, closeConn := dial(maddr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := client.GetBalance(ctx, wrapperspb.Bytes(pkh[:]))
	if err != nil {
		log.Fatalf("GetBalance failed: %v", err)
	}
	fmt.Printf("\nAddress: %s\n", address)
	fmt.Printf("Balance: %d\n", resp.GetValue())
}

func showStatus(maddr string) {
	client, closeConn := dial(maddr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := client.GetStatus(ctx, &emptypb.Empty{})
	if err != nil {
		log.Fatalf("GetStatus failed: %v", err)
	}
	fields := st.GetFields()
	fmt.Printf("Height:       %.0f\n", fields["height"].GetNumberValue())
	fmt.Printf("Tip:          %s\n", fields["tip"].GetStringValue())
	fmt.Printf("Mining:       %t\n", fields["mining"].GetBoolValue())
	fmt.Printf("Blocks mined: %.0f\n", fields["blocksMined"].GetNumberValue())
	pending := fields["pending"].GetListValue().GetValues()
	fmt.Printf("Pending:      %d\n", len(pending))
	for _, id := range pending {
		fmt.Printf("  %s\n", id.GetStringValue())
	}
}

func submitTransaction(maddr, txHex string) {
	t, err := tx.FromHex(txHex)
	if err != nil {
		log.Fatalf("Invalid transaction: %v", err)
	}
	client, closeConn := dial(maddr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := client.SubmitTransaction(ctx, wrapperspb.Bytes(t.Encode()))
	if err != nil {
		log.Fatalf("SubmitTransaction failed: %v", err)
	}
	fmt.Printf("✓ Transaction accepted: %x\n", resp.GetValue())
}

func send(maddr, hexKey, to string, amount uint64) {
	priv, err := crypto.PrivKeyFromHex(hexKey)
	if err != nil {
		log.Fatalf("Invalid private key: %v", err)
	}
	from := crypto.KeyPairFromPrivKey(priv)
	recipient, err := crypto.DecodeAddress(to)
	if err != nil {
		log.Fatalf("Invalid recipient address: %v", err)
	}
	client, closeConn := dial(maddr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sender := crypto.PublicKeyHash(from.PubKey)
	resp, err := client.GetSpendable(ctx, wrapperspb.Bytes(sender[:]))
	if err != nil {
		log.Fatalf("GetSpendable failed: %v", err)
	}
	set, err := utxo.DeserializeUTXOSet(resp.GetValue())
	if err != nil {
		log.Fatalf("Invalid outputs from node: %v", err)
	}

	t, err := blockchain.NewTransfer(set, from, recipient, amount)
	if err != nil {
		log.Fatalf("Failed to create transaction: %v", err)
	}
	id, err := client.SubmitTransaction(ctx, wrapperspb.Bytes(t.Encode()))
	if err != nil {
		log.Fatalf("SubmitTransaction failed: %v", err)
	}
	fmt.Printf("✓ Sent %d to %s\n", amount, to)
	fmt.Printf("Transaction: %x\n", id.GetValue())
}

func submitBlock(maddr, blockHex, authKey string) {
	blk, err := block.FromHex(blockHex)
	if err != nil {
		log.Fatalf("Invalid block: %v", err)
	}
	client, closeConn := dial(maddr)
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if authKey != "" {
		signed := parseAuthKey(authKey).Issue(time.Now())
		ctx = metadata.AppendToOutgoingContext(ctx, grpc.TokenMetadataKey, hex.EncodeToString(signed))
	}
	id, err := client.SubmitBlock(ctx, wrapperspb.Bytes(blk.Encode()))
	if err != nil {
		log.Fatalf("SubmitBlock failed: %v", err)
	}
	fmt.Printf("✓ Block %d accepted: %x\n", blk.Header.NBlock, id.GetValue())
}

func parseAuthKey(hexKey string) *token.Authority {
	b, err := hex.DecodeString(hexKey)
	if err != nil || len(b) != 32 {
		log.Fatalf("auth key must be 32 hex-encoded bytes")
	}
	var key [32]byte
	copy(key[:], b)
	return token.NewAuthorityWithKey(key)
}

func issueToken(hexKey string) {
	signed := parseAuthKey(hexKey).Issue(time.Now())
	fmt.Printf("%s: %x\n", grpc.TokenMetadataKey, signed)
	fmt.Printf("Valid for %s\n", token.Lifetime)
}
