// Copyright 2025 Trustless Voting System
//
// Entrypoint for the vote ingestion/tallying core: wires configuration, the
// election registry, the anchor orchestrator, and the edge-sync server onto
// one net/http.ServeMux, mirroring the validator's single-binary main.go
// (HealthStatus tracking, stdlib mux, no router framework).

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/jasonsutter87/tvs-core/pkg/anchor"
	"github.com/jasonsutter87/tvs-core/pkg/batchqueue"
	"github.com/jasonsutter87/tvs-core/pkg/blobstore"
	"github.com/jasonsutter87/tvs-core/pkg/config"
	"github.com/jasonsutter87/tvs-core/pkg/edgesync"
	"github.com/jasonsutter87/tvs-core/pkg/ingest"
	"github.com/jasonsutter87/tvs-core/pkg/kvdb"
	"github.com/jasonsutter87/tvs-core/pkg/ledger"
	"github.com/jasonsutter87/tvs-core/pkg/verify"
)

// HealthStatus tracks the health of the core's external collaborators for
// the /health endpoint, generalized from the validator's HealthStatus to
// this service's dependency set (anchor timestamping target, blob writer,
// database) instead of Ethereum/Accumulate/CometBFT.
type HealthStatus struct {
	Status        string `json:"status"`
	Anchor        string `json:"anchor"`
	BlobStore     string `json:"blob_store"`
	Database      string `json:"database"`
	BatchQueue    string `json:"batch_queue"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	startTime time.Time
	mu        sync.RWMutex
}

var healthStatus = &HealthStatus{
	Status:     "starting",
	Anchor:     "unknown",
	BlobStore:  "unknown",
	Database:   "unknown",
	BatchQueue: "unknown",
	startTime:  time.Now(),
}

func (h *HealthStatus) set(field *string, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*field = value
	h.updateOverallStatus()
}

func (h *HealthStatus) updateOverallStatus() {
	if h.Anchor == "disconnected" {
		h.Status = "degraded"
		return
	}
	if h.Database == "disconnected" && h.Database != "unknown" {
		h.Status = "degraded"
		return
	}
	h.Status = "ok"
}

func (h *HealthStatus) ToJSON() []byte {
	h.mu.Lock()
	h.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	h.mu.Unlock()
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(h)
	return data
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("[tvs-core] starting vote ingestion/tallying service")

	var showHelp = flag.Bool("help", false, "Show help message")
	flag.Parse()
	if *showHelp {
		fmt.Println("tvs-core: vote ingestion and tallying service. Configure via environment variables; see pkg/config.")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if os.Getenv("ENVIRONMENT") == "production" {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("configuration validation failed: %v", err)
		}
	} else if err := cfg.ValidateForDevelopment(); err != nil {
		log.Fatalf("configuration validation failed: %v", err)
	}
	ingest.RequireCredentialSignature = cfg.RequireCredentialSignature

	registry := ingest.NewRegistry()

	// Embedded KV shared by question-ledger checkpoints and anchor records:
	// both are small, single-node-local bookkeeping, not the vote data
	// itself, which lives in the blob store below.
	embeddedDB := dbm.NewMemDB()
	embeddedKV := kvdb.NewKVAdapter(embeddedDB)
	registry.SetCheckpointStore(ledger.NewCheckpointStore(embeddedKV))

	// --- Blob store (C2) ---
	var blobStore batchqueue.Blob
	if cfg.UseDatabase {
		pg, err := blobstore.NewPostgres(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			log.Printf("blob store: postgres connection failed, falling back to memory: %v", err)
			blobStore = blobstore.NewMemory()
			healthStatus.set(&healthStatus.Database, "disconnected")
		} else {
			blobStore = pg
			healthStatus.set(&healthStatus.Database, "connected")
		}
	} else {
		blobStore = blobstore.NewMemory()
		healthStatus.set(&healthStatus.Database, "unknown")
	}
	blobWriter := batchqueue.NewAsyncBlobWriter(blobStore, cfg.BlobBacklogCap)
	healthStatus.set(&healthStatus.BlobStore, "active")

	// --- Batch queue (C6) ---
	// Coalesces concurrent ballot submissions per question before extending
	// the ledger's Merkle tree, and buffers flushed groups on blobWriter for
	// write-behind persistence. Disabled via BATCH_ENABLED=false flushes
	// every Enqueue synchronously (see batchqueue.Queue.Enqueue).
	voteQueue := batchqueue.New(batchqueue.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.BatchFlushMS) * time.Millisecond,
		Enabled:       cfg.BatchEnabled,
	}, blobWriter)

	// --- Anchor orchestrator (C9) ---
	var timestampClient anchor.TimestampingClient
	if cfg.UseBitcoinAnchoring {
		timestampClient = anchor.NewHTTPTimestampingClient(cfg.TimestampingURL)
		log.Printf("anchor: using Bitcoin calendar client at %s", cfg.TimestampingURL)
	} else {
		evmClient, err := anchor.NewEVMClient(cfg.EthereumURL, cfg.EthChainID, cfg.AnchorContractAddress, cfg.EthPrivateKey)
		if err != nil {
			log.Printf("anchor: EVM client unavailable, anchoring degraded: %v", err)
			healthStatus.set(&healthStatus.Anchor, "disconnected")
		} else {
			timestampClient = evmClient
			log.Printf("anchor: using EVM anchor contract %s", cfg.AnchorContractAddress)
		}
	}
	if healthStatus.Anchor != "disconnected" {
		healthStatus.set(&healthStatus.Anchor, "connected")
	}

	anchorStore := anchor.NewKVStore(embeddedKV)
	orchestrator := anchor.New(timestampClient, anchorStore, anchor.Config{
		BaseDelay: time.Duration(cfg.AnchorBaseDelayMS) * time.Millisecond,
	})

	// --- Proof verifiers (C4 decryption / vote submission) ---
	verifiers := verify.NewRegistry(map[verify.System]verify.Verifier{
		"stub": verify.StubVerifier{},
	})

	// --- Edge-sync node key registry (C11) ---
	nodeKeys := edgesync.NewNodeKeyRegistry()
	if err := loadNodeKeys(cfg.NodeKeysDir, nodeKeys); err != nil {
		log.Printf("edgesync: failed to load node keys from %s: %v", cfg.NodeKeysDir, err)
	}
	edgeServer := edgesync.NewServer(registry, nodeKeys)
	edgeHandler := edgesync.NewHandler(edgeServer)

	healthStatus.set(&healthStatus.BatchQueue, "active")
	if !cfg.BatchEnabled {
		healthStatus.set(&healthStatus.BatchQueue, "disabled")
	}

	electionHandlers := ingest.NewElectionHandlers(registry, orchestrator)
	trusteeHandlers := ingest.NewTrusteeHandlers(registry)
	voteHandlers := ingest.NewVoteHandlers(registry, verifiers, "stub")
	voteHandlers.SetQueue(voteQueue)
	tallyHandlers := ingest.NewTallyHandlers(registry)

	bgCtx, cancelBg := context.WithCancel(context.Background())
	blobWriter.Start(bgCtx)
	voteQueue.Start(bgCtx)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if healthStatus.Status == "ok" {
			w.WriteHeader(http.StatusOK)
		} else if healthStatus.Status == "degraded" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write(healthStatus.ToJSON())
	})
	mux.HandleFunc("/health/detailed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          healthStatus.Status,
			"anchor":          healthStatus.Anchor,
			"blob_store":      healthStatus.BlobStore,
			"database":        healthStatus.Database,
			"batch_queue":     healthStatus.BatchQueue,
			"uptime_seconds":  int64(time.Since(healthStatus.startTime).Seconds()),
			"election_count":  len(registry.All()),
			"edge_node_count": len(cfg.NodeKeysDir), // presence indicator only; exact count is not tracked
		})
	})

	mux.HandleFunc("/api/elections", electionHandlers.HandleCreate)
	mux.HandleFunc("/api/elections/", dispatchElection(electionHandlers, trusteeHandlers))

	mux.HandleFunc("/api/vote", voteHandlers.HandleVote)
	mux.HandleFunc("/api/vote/ballot", voteHandlers.HandleBallot)
	mux.HandleFunc("/api/vote/stats/", voteHandlers.HandleStats)
	mux.HandleFunc("/api/vote/root/", voteHandlers.HandleRoot)
	mux.HandleFunc("/api/vote/verify/", voteHandlers.HandleVerify)
	mux.HandleFunc("/api/vote/tally/", dispatchTally(tallyHandlers))

	mux.HandleFunc("/api/sync/upload", edgeHandler.HandleUpload)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("api listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	voteQueue.Stop()
	blobWriter.Stop()
	cancelBg()
	log.Printf("stopped")
}

// loadNodeKeys registers every <node_id>.pub file in dir as an edge node's
// RSA signing key.
func loadNodeKeys(dir string, registry *edgesync.NodeKeyRegistry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read node keys dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pub") {
			continue
		}
		nodeID := strings.TrimSuffix(entry.Name(), ".pub")
		der, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("edgesync: skipping node key %s: %v", entry.Name(), err)
			continue
		}
		if err := registry.Register(nodeID, der); err != nil {
			log.Printf("edgesync: invalid node key %s: %v", entry.Name(), err)
			continue
		}
		log.Printf("edgesync: registered node key for %s", nodeID)
	}
	return nil
}

// dispatchElection fans out everything under /api/elections/ by path
// suffix, since the handlers parse their own ids from r.URL.Path rather
// than relying on a router's pattern variables.
func dispatchElection(election *ingest.ElectionHandlers, trustee *ingest.TrusteeHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/questions"):
			election.HandleAddQuestion(w, r)
		case strings.HasSuffix(path, "/status"):
			election.HandleUpdateStatus(w, r)
		case strings.HasSuffix(path, "/commitment"):
			trustee.HandleSubmitCommitment(w, r)
		case strings.HasSuffix(path, "/trustees"):
			trustee.HandleRegister(w, r)
		default:
			election.HandleGet(w, r)
		}
	}
}

// dispatchTally fans out everything under /api/vote/tally/ by path suffix.
func dispatchTally(tally *ingest.TallyHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/start"):
			tally.HandleStart(w, r)
		case strings.HasSuffix(path, "/decrypt"):
			tally.HandleDecrypt(w, r)
		case strings.HasSuffix(path, "/complete"):
			tally.HandleComplete(w, r)
		default:
			tally.HandleStatus(w, r)
		}
	}
}
