// Copyright 2025 UkweliDB Authors
//
// ukwelictl is an operator CLI over a single on-disk ledger store: a
// snapshot/WAL pair recovered and compacted through pkg/recovery, plus a
// per-user key directory managed through pkg/crypto.KeyManager. It
// mirrors the teacher's flag-based, single-purpose CLI convention
// (cmd/bls-zk-setup) rather than introducing a command framework the
// teacher's own code never pulled in.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ukwelidb/ukwelidb/pkg/crypto"
	"github.com/ukwelidb/ukwelidb/pkg/ledger"
	"github.com/ukwelidb/ukwelidb/pkg/metrics"
	"github.com/ukwelidb/ukwelidb/pkg/recovery"
	"github.com/ukwelidb/ukwelidb/pkg/wal"
	"github.com/ukwelidb/ukwelidb/pkg/workflow"
	"github.com/ukwelidb/ukwelidb/pkg/workflowfile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "register-user":
		err = runRegisterUser(os.Args[2:])
	case "add-record":
		err = runAddRecord(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "compact":
		err = runCompact(os.Args[2:])
	case "load-workflow":
		err = runLoadWorkflow(os.Args[2:])
	case "validate-transition":
		err = runValidateTransition(os.Args[2:])
	case "serve-metrics":
		err = runServeMetrics(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Printf("ukwelictl: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ukwelictl <command> [flags]

commands:
  init                  create a fresh ledger store
  register-user         register a new signer and write its key file
  add-record            append a signed record to the ledger
  verify                recover the ledger and run VerifyChain
  compact               compact the WAL into a fresh snapshot
  load-workflow         parse and validate a workflow definition file
  validate-transition   validate a workflow transition against a loaded definition
  serve-metrics         serve Prometheus metrics over HTTP until interrupted`)
}

// cliRoleSet is a bare []string satisfying workflow.RoleHolder, for the
// -roles flag's ad hoc acting signer set (no real User/Signer involved).
type cliRoleSet []string

func (r cliRoleSet) RoleList() []string { return r }

func storeFromDir(dir string) recovery.Store {
	return recovery.Store{
		SnapshotPath: filepath.Join(dir, "snapshot.ukwl"),
		WALPath:      filepath.Join(dir, "wal.log"),
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("store", ".", "ledger store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	s := storeFromDir(*dir)
	if _, err := os.Stat(s.SnapshotPath); err == nil {
		return fmt.Errorf("store already initialized at %s", *dir)
	}

	l, err := ledger.New()
	if err != nil {
		return fmt.Errorf("create genesis ledger: %w", err)
	}
	if err := recovery.CreateSnapshot(s.SnapshotPath, l); err != nil {
		return fmt.Errorf("write initial snapshot: %w", err)
	}
	if err := wal.Truncate(s.WALPath); err != nil {
		return fmt.Errorf("create empty WAL: %w", err)
	}

	fmt.Printf("initialized ledger store at %s\n", *dir)
	return nil
}

func runRegisterUser(args []string) error {
	fs := flag.NewFlagSet("register-user", flag.ExitOnError)
	dir := fs.String("store", ".", "ledger store directory")
	userID := fs.String("user", "", "user id to register")
	roles := fs.String("roles", "", "comma-separated role list")
	keysDir := fs.String("keys-dir", "", "directory to write the user's key file (default: <store>/keys)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("register-user: -user is required")
	}
	if *keysDir == "" {
		*keysDir = filepath.Join(*dir, "keys")
	}

	s := storeFromDir(*dir)
	l, err := recovery.Recover(s)
	if err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}

	km := crypto.NewKeyManager(filepath.Join(*keysDir, *userID+".key"))
	if err := km.LoadOrGenerateKey(); err != nil {
		return fmt.Errorf("load or generate key for %q: %w", *userID, err)
	}

	var roleList []string
	if *roles != "" {
		roleList = strings.Split(*roles, ",")
	}
	user := ledger.NewUser(*userID, km.KeyPair().PublicKey, roleList...)
	if err := l.RegisterUser(user); err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	w, err := wal.OpenWriter(s.WALPath)
	if err != nil {
		return fmt.Errorf("open WAL: %w", err)
	}
	defer w.Close()
	if err := w.AppendUser(user); err != nil {
		return fmt.Errorf("log user registration: %w", err)
	}

	fmt.Printf("registered %q with public key %s\n", *userID, km.PublicKeyHex())
	return nil
}

func runAddRecord(args []string) error {
	fs := flag.NewFlagSet("add-record", flag.ExitOnError)
	dir := fs.String("store", ".", "ledger store directory")
	userID := fs.String("user", "", "signer user id (must already be registered)")
	payload := fs.String("payload", "", "record payload")
	keysDir := fs.String("keys-dir", "", "directory holding the signer's key file (default: <store>/keys)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" || *payload == "" {
		return fmt.Errorf("add-record: -user and -payload are required")
	}
	if *keysDir == "" {
		*keysDir = filepath.Join(*dir, "keys")
	}

	s := storeFromDir(*dir)
	l, err := recovery.Recover(s)
	if err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}

	km := crypto.NewKeyManager(filepath.Join(*keysDir, *userID+".key"))
	if err := km.LoadKey(); err != nil {
		return fmt.Errorf("load key for %q: %w", *userID, err)
	}
	signer := ledger.NewSigner(*userID, km.KeyPair().PrivateKey)

	idx, err := l.AddRecord(*payload, []ledger.Signer{signer})
	if err != nil {
		return fmt.Errorf("add record: %w", err)
	}
	rec, _ := l.RecordAt(idx)

	w, err := wal.OpenWriter(s.WALPath)
	if err != nil {
		return fmt.Errorf("open WAL: %w", err)
	}
	defer w.Close()
	if err := w.AppendRecord(rec); err != nil {
		return fmt.Errorf("log record: %w", err)
	}

	fmt.Printf("appended record %d: hash=%s\n", idx, rec.RecordHash)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dir := fs.String("store", ".", "ledger store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := storeFromDir(*dir)
	l, err := recovery.Recover(s)
	if err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}
	if err := l.VerifyChain(); err != nil {
		return fmt.Errorf("chain verification failed: %w", err)
	}

	fmt.Printf("ledger at %s is valid: %d records\n", *dir, l.Length())
	return nil
}

func runCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	dir := fs.String("store", ".", "ledger store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := storeFromDir(*dir)
	l, err := recovery.Recover(s)
	if err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}
	if err := recovery.Compact(s, l); err != nil {
		return fmt.Errorf("compact: %w", err)
	}

	fmt.Printf("compacted %s: %d records in fresh snapshot\n", *dir, l.Length())
	return nil
}

func runLoadWorkflow(args []string) error {
	fs := flag.NewFlagSet("load-workflow", flag.ExitOnError)
	workflowFile := fs.String("workflow-file", "", "path to a workflow definition (YAML)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workflowFile == "" {
		return fmt.Errorf("load-workflow: -workflow-file is required")
	}

	def, err := workflowfile.Load(*workflowFile)
	if err != nil {
		return fmt.Errorf("load workflow definition: %w", err)
	}

	e := workflow.NewEngine()
	if err := e.LoadWorkflow(def); err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	fmt.Printf("workflow %q (%s): %d states, %d transitions, initial_state=%s\n",
		def.ID, def.Name, len(def.States), len(def.Transitions), def.InitialState)
	return nil
}

func runValidateTransition(args []string) error {
	fs := flag.NewFlagSet("validate-transition", flag.ExitOnError)
	workflowFile := fs.String("workflow-file", "", "path to a workflow definition (YAML)")
	workflowID := fs.String("workflow", "", "workflow id")
	from := fs.String("from", "", "from state id")
	to := fs.String("to", "", "to state id")
	rolesCSV := fs.String("roles", "", "comma-separated roles held by the acting signer set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workflowFile == "" || *workflowID == "" || *from == "" || *to == "" {
		return fmt.Errorf("validate-transition: -workflow-file, -workflow, -from, and -to are required")
	}

	def, err := workflowfile.Load(*workflowFile)
	if err != nil {
		return fmt.Errorf("load workflow definition: %w", err)
	}

	e := workflow.NewEngine()
	if err := e.LoadWorkflow(def); err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	var roleList []string
	if *rolesCSV != "" {
		roleList = strings.Split(*rolesCSV, ",")
	}
	acting := cliRoleSet(roleList)

	if err := e.ValidateTransition(*workflowID, *from, *to, []workflow.RoleHolder{acting}, ""); err != nil {
		return fmt.Errorf("transition rejected: %w", err)
	}

	fmt.Printf("transition %s -> %s in workflow %q is valid for roles %v\n", *from, *to, *workflowID, roleList)
	return nil
}

// runServeMetrics exposes this process's collectors over HTTP until
// interrupted, mirroring the teacher's own main.go pattern of a
// net/http server shut down on SIGINT/SIGTERM via os/signal.
func runServeMetrics(args []string) error {
	fs := flag.NewFlagSet("serve-metrics", flag.ExitOnError)
	addr := fs.String("addr", ":9090", "address to serve /metrics on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: *addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("serving metrics on %s/metrics", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
