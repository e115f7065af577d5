// Package node assembles a running ciphernode: store, bus, sequencer,
// ceremony router with its extension chain, sync manager, prover pool,
// network surfaces, and the effect gate. It plays the role the teacher's
// daemon plays for its beacon processes: one place that owns construction
// order, run loops, and graceful shutdown.
package node

import (
	"context"
	"crypto/sha256"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/gnosisguild/enclave-sub005/pkg/adapters/chain"
	"github.com/gnosisguild/enclave-sub005/pkg/adapters/keystore"
	"github.com/gnosisguild/enclave-sub005/pkg/adapters/netpeer"
	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/config"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/errkind"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/fhe"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/httpapi"
	"github.com/gnosisguild/enclave-sub005/pkg/metrics"
	"github.com/gnosisguild/enclave-sub005/pkg/netrpc"
	"github.com/gnosisguild/enclave-sub005/pkg/router"
	"github.com/gnosisguild/enclave-sub005/pkg/secretbox"
	"github.com/gnosisguild/enclave-sub005/pkg/sequencer"
	"github.com/gnosisguild/enclave-sub005/pkg/sortition"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
	esync "github.com/gnosisguild/enclave-sub005/pkg/sync"
	"github.com/gnosisguild/enclave-sub005/pkg/zkproof"
)

// sealSalt derives the keyshare-at-rest key from the node passphrase.
var sealSalt = []byte("enclave/threshold-keyshare/v1")

// ShutdownGrace bounds how long Stop waits for actors to acknowledge
// (spec §5's 2-second grace timeout).
const ShutdownGrace = 2 * time.Second

// Options carries everything a Node needs beyond the file config.
type Options struct {
	Config *config.Config
	// Local is this node's on-chain address, its identity in committees.
	Local string
	// Scheme is the BFV kernel boundary; fhe.Mock for dev networks.
	Scheme fhe.Scheme
	// ProverBackend is the ZK circuit boundary. Defaults to an insecure
	// digest backend suitable only alongside fhe.Mock.
	ProverBackend zkproof.Backend
	// ProverThreads bounds the proof worker pool (spec §4.9 max_threads).
	ProverThreads int
	// SealPassphrase unlocks the keystore and derives the keyshare
	// at-rest key. Required.
	SealPassphrase []byte
	// HistoryCapture retains all bus events for diagnostic replay.
	HistoryCapture bool
	// NetworkID joins the libp2p gossip topic when non-empty.
	NetworkID string
	// HTTPAddr serves the diagnostics HTTP surface when non-empty.
	HTTPAddr string
	// MetricsAddr serves the Prometheus surface when non-empty.
	MetricsAddr string
	// ChainClients provides EVM readers per chain id, keyed to match
	// Config.Chains.
	ChainClients map[uint64]chain.Client
	// ChainSender, if set, carries aggregator outputs on-chain.
	ChainSender chain.Sender
	// SyncQuiescence overrides the sync protocol's quiet interval.
	SyncQuiescence time.Duration
}

// Node is one running ciphernode.
type Node struct {
	log      elog.Logger
	cfg      *config.Config
	opts     Options
	backend  store.Store
	bus      *bus.Bus
	seqr     *sequencer.Sequencer
	registry *sortition.Registry
	router   *router.Router
	syncMgr  *esync.Manager
	pool     *zkproof.Pool
	signer   *zkproof.Signer
	keys     *keystore.Keystore
	watch    *watchdog

	netLis  *netrpc.Listener
	ctlLis  *netrpc.ControlListener
	httpSrv *httpapi.Server
	peer    *netpeer.Node
	readers []*chain.Reader
	writer  *chain.Writer

	emit     chan events.Unsequenced
	routeCh  chan events.Event
	done     chan struct{}
	shutdown chan struct{}
	wg       stdsync.WaitGroup
}

// insecureBackend "proves" by hashing the request input. Only meaningful
// next to fhe.Mock, where verification is recomputation.
type insecureBackend struct{}

func (insecureBackend) Prove(_ context.Context, req zkproof.Request) ([]byte, error) {
	sum := sha256.Sum256(append([]byte(req.Kind), req.Input...))
	return sum[:], nil
}

// New constructs a Node. Nothing runs until Start.
func New(ctx context.Context, opts Options) (*Node, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	log := cfg.Logger().Named("node")

	backend, err := cfg.OpenStore()
	if err != nil {
		return nil, err
	}

	n := &Node{
		log:      log,
		cfg:      cfg,
		opts:     opts,
		backend:  backend,
		emit:     make(chan events.Unsequenced, 1024),
		routeCh:  make(chan events.Event, 1024),
		done:     make(chan struct{}),
		shutdown: make(chan struct{}),
	}

	busOpts := []bus.Option{}
	if opts.HistoryCapture {
		busOpts = append(busOpts, bus.WithHistory())
	}
	n.bus = bus.New(log.Named("bus"), busOpts...)
	metrics.Hook(n.bus)

	clock := hlc.New(func() uint64 { return uint64(time.Now().UnixNano()) })
	n.seqr, err = sequencer.New(ctx, log.Named("sequencer"), n.bus, clock, store.NewRepository(backend, "//eventlog"))
	if err != nil {
		return nil, err
	}

	n.registry, err = sortition.NewRegistry(ctx, store.NewRepository(backend, "//sortition"))
	if err != nil {
		return nil, err
	}

	if len(opts.SealPassphrase) == 0 {
		return nil, fmt.Errorf("node: a seal passphrase is required, keyshare state is encrypted at rest")
	}
	n.keys = keystore.New(backend)
	if err := n.keys.SetPassword(opts.SealPassphrase); err != nil {
		return nil, err
	}
	sealKey, err := secretbox.DeriveKey(opts.SealPassphrase, sealSalt)
	if err != nil {
		return nil, err
	}

	scheme := opts.Scheme
	if scheme == nil {
		scheme = fhe.Mock{}
	}
	backendProver := opts.ProverBackend
	if backendProver == nil {
		backendProver = insecureBackend{}
	}
	n.signer = zkproof.NewSigner()
	threads := opts.ProverThreads
	if threads <= 0 {
		threads = 4
	}
	// every proof leaves the pool in a SignedProof envelope bound to its
	// request, attributable via the node's auth key
	n.pool = zkproof.New(log.Named("zkproof"), zkproof.WrapBackend(backendProver, n.signer), threads, n.enqueue)

	n.router = router.New(log.Named("router"), store.NewRepository(backend, "//context"),
		router.Meta{},
		router.Lifecycle{Submit: n.enqueue},
		router.SortitionScore{LocalAddr: opts.Local},
		router.CommitteeSelect{Registry: n.registry, Local: opts.Local, Submit: n.enqueue},
		router.FHEParams{},
		router.PubKeyAgg{Kernel: scheme, Submit: n.enqueue},
		router.PlaintextAgg{Kernel: scheme, Submit: n.enqueue},
		router.ThresholdKeyshare{Scheme: scheme, Prover: n.pool, Submit: n.enqueue, Local: opts.Local, SealKey: sealKey},
		router.ZKProver{Prover: n.pool},
	)

	var chains []uint64
	for _, c := range cfg.Chains() {
		chains = append(chains, c.ChainID)
	}
	n.syncMgr, err = esync.New(ctx, esync.Config{
		Log:        log.Named("sync"),
		Clock:      cfg.Clock(),
		Sequencer:  n.seqr,
		Backend:    backend,
		Quiescence: opts.SyncQuiescence,
		Chains:     chains,
	})
	if err != nil {
		return nil, err
	}

	n.watch = newWatchdog(cfg.Clock(), cfg.DKGTimeout(), n.enqueue)

	// every sequenced event flows through the route loop
	n.bus.Subscribe(events.WildcardTopic, func(_ context.Context, ev events.Event) error {
		select {
		case n.routeCh <- ev:
		default:
			// never block the bus; spill to a goroutine under burst
			go func() { n.routeCh <- ev }()
		}
		return nil
	})

	return n, nil
}

// enqueue is the Submitter handed to every extension and pool: events are
// queued for the emit loop rather than submitted inline, so no actor ever
// re-enters the sequencer or bus mid-dispatch.
func (n *Node) enqueue(u events.Unsequenced) error {
	select {
	case n.emit <- u:
	default:
		go func() { n.emit <- u }()
	}
	return nil
}

// Submit injects a locally originated event, e.g. from the CLI or tests.
func (n *Node) Submit(p events.Payload) error {
	return n.enqueue(events.Unsequenced{Payload: p})
}

// Start brings up the run loops, sync, and the configured surfaces.
func (n *Node) Start(ctx context.Context) error {
	n.wg.Add(2)
	go n.emitLoop(ctx)
	go n.routeLoop(ctx)

	if err := n.syncMgr.Start(ctx, n.bus); err != nil {
		return err
	}

	if n.opts.NetworkID != "" {
		peer, err := netpeer.New(ctx, netpeer.Config{
			Log:          n.log.Named("netpeer"),
			NetworkID:    n.opts.NetworkID,
			ListenAddr:   "",
			Bootstrap:    n.cfg.BootstrapPeers(),
			IdentityPath: n.cfg.ConfigFolder() + "/libp2p.key",
			Submit:       n.enqueue,
		})
		if err != nil {
			return err
		}
		n.peer = peer
	}

	for chainID, client := range n.opts.ChainClients {
		fromBlock := uint64(0)
		if cur, ok := n.syncMgr.Cursor(chainID); ok && cur.Block != nil {
			fromBlock = *cur.Block
		}
		r := chain.NewReader(chain.ReaderConfig{
			Log:     n.log.Named("evm"),
			Clock:   n.cfg.Clock(),
			Client:  client,
			ChainID: chainID,
			Submit:  n.enqueue,
		}, fromBlock)
		r.Start(ctx)
		n.readers = append(n.readers, r)
	}
	if n.opts.ChainSender != nil {
		n.writer = chain.NewWriter(n.log.Named("evm"), n.bus, &gatedSender{inner: n.opts.ChainSender, armed: n.syncMgr.Armed, log: n.log})
	}

	lis, err := netrpc.NewListener(n.log.Named("netrpc"), n.cfg.ListenAddress("0.0.0.0:0"),
		&netrpc.DefaultService{Log: n.log, Seqr: n.seqr})
	if err != nil {
		return err
	}
	n.netLis = lis
	go lis.Start()

	ctl, err := netrpc.NewControlListener(n.log.Named("control"), n.cfg.ControlPort(), n)
	if err != nil {
		return err
	}
	n.ctlLis = ctl
	go ctl.Start()

	if n.opts.HTTPAddr != "" {
		srv := httpapi.New(httpapi.Config{
			Log:     n.log.Named("http"),
			Health:  n.health,
			History: n.historyFn(),
			Metrics: metrics.Handler(),
			Control: netrpc.RESTHandler(n),
		})
		if err := srv.Start(n.opts.HTTPAddr); err != nil {
			return err
		}
		n.httpSrv = srv
	}
	if n.opts.MetricsAddr != "" {
		if _, err := metrics.Start(n.log.Named("metrics"), n.opts.MetricsAddr); err != nil {
			return err
		}
	}

	n.log.Infow("node started", "local", n.opts.Local, "chains", len(n.cfg.Chains()))
	return nil
}

func (n *Node) historyFn() func() []events.Event {
	if !n.opts.HistoryCapture {
		return nil
	}
	return n.bus.History
}

func (n *Node) health() httpapi.Health {
	return httpapi.Health{Status: "ok", LastSeq: n.seqr.LastSeq(), Armed: n.syncMgr.Armed()}
}

func (n *Node) emitLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case u := <-n.emit:
			if _, err := n.seqr.Submit(ctx, u, nil); err != nil {
				n.log.Errorw("emit: submit failed", "kind", u.Payload.Kind(), "err", err)
			}
		case <-n.done:
			return
		}
	}
}

// gossiped lists the event kinds carried to peers (spec §6's single
// gossip topic): the DKG wire exchanges. Chain-facing outputs go through
// the chain writer instead.
func gossiped(k events.Kind) bool {
	switch k {
	case events.KindThresholdShareCreated,
		events.KindDecryptionKeyShared,
		events.KindKeyshareCreated,
		events.KindDecryptionshareCreated:
		return true
	}
	return false
}

func (n *Node) routeLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case ev := <-n.routeCh:
			n.route(ctx, ev)
		case <-n.done:
			return
		}
	}
}

func (n *Node) route(ctx context.Context, ev events.Event) {
	_, payload := errkind.Trap(func() error {
		switch p := ev.Payload.(type) {
		case events.CiphernodeAdded:
			return n.registry.OnCiphernodeAdded(ctx, p)
		case *events.CiphernodeAdded:
			return n.registry.OnCiphernodeAdded(ctx, *p)
		case events.OperatorActivationChanged:
			return n.registry.OnOperatorActivationChanged(ctx, p)
		case *events.OperatorActivationChanged:
			return n.registry.OnOperatorActivationChanged(ctx, *p)
		}
		return n.router.Dispatch(ctx, ev)
	})
	if payload != nil {
		_ = n.enqueue(events.Unsequenced{Payload: *payload, CausationId: ev.Id, OriginId: ev.OriginId})
	}

	n.watch.observe(ev)

	// effect events leave the process only once sync has armed us
	// (spec §4.8 step 4)
	if n.peer != nil && gossiped(ev.Kind()) && n.syncMgr.Armed() {
		wire, err := events.EncodeEvent(ev)
		if err == nil {
			if err := n.peer.Publish(ctx, wire); err != nil {
				n.log.Warnw("gossip publish failed", "kind", ev.Kind(), "err", err)
			}
		}
	}
}

// ---- control surface ----

var _ netrpc.ControlServer = (*Node)(nil)

func (n *Node) PingPong(context.Context, *netrpc.Ping) (*netrpc.Pong, error) {
	return &netrpc.Pong{LastSeq: n.seqr.LastSeq()}, nil
}

func (n *Node) Status(context.Context, *netrpc.StatusRequest) (*netrpc.StatusReply, error) {
	var chains []uint64
	for _, c := range n.cfg.Chains() {
		chains = append(chains, c.ChainID)
	}
	return &netrpc.StatusReply{LastSeq: n.seqr.LastSeq(), Armed: n.syncMgr.Armed(), Chains: chains}, nil
}

func (n *Node) Shutdown(context.Context, *netrpc.ShutdownRequest) (*netrpc.ShutdownReply, error) {
	select {
	case <-n.shutdown:
	default:
		close(n.shutdown)
	}
	return &netrpc.ShutdownReply{}, nil
}

// ShutdownRequested closes when a control client asked the daemon to stop.
func (n *Node) ShutdownRequested() <-chan struct{} { return n.shutdown }

// ---- accessors ----

func (n *Node) Bus() *bus.Bus                   { return n.bus }
func (n *Node) Sequencer() *sequencer.Sequencer { return n.seqr }
func (n *Node) Router() *router.Router          { return n.router }
func (n *Node) Keystore() *keystore.Keystore    { return n.keys }
func (n *Node) Armed() bool                     { return n.syncMgr.Armed() }

// Stop shuts everything down: a Shutdown event is sequenced so actors can
// snapshot, then surfaces close and loops drain within the grace window.
func (n *Node) Stop(ctx context.Context) {
	if _, err := n.seqr.Submit(ctx, events.Unsequenced{Payload: events.Shutdown{}}, nil); err != nil {
		n.log.Warnw("stop: shutdown event not sequenced", "err", err)
	}

	n.syncMgr.Stop()
	for _, r := range n.readers {
		r.Stop()
	}
	if n.peer != nil {
		_ = n.peer.Close()
	}
	if n.netLis != nil {
		n.netLis.Stop()
	}
	if n.ctlLis != nil {
		n.ctlLis.Stop()
	}
	if n.httpSrv != nil {
		_ = n.httpSrv.Stop(ctx)
	}

	close(n.done)
	drained := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(ShutdownGrace):
		n.log.Warnw("stop: grace timeout elapsed before actors drained")
	}
	n.pool.Close()
	n.keys.DeletePassword()
	if err := n.backend.Close(); err != nil {
		n.log.Warnw("stop: closing store", "err", err)
	}
	n.log.Infow("node stopped")
}

// gatedSender disarms chain writes until the sync protocol enables
// effects, so replay never re-publishes transactions.
type gatedSender struct {
	inner chain.Sender
	armed func() bool
	log   elog.Logger
}

func (g *gatedSender) PublishCommittee(ctx context.Context, e events.CommitteePublished) error {
	if !g.armed() {
		g.log.Debugw("chain write suppressed before EffectsEnabled", "kind", e.Kind())
		return nil
	}
	return g.inner.PublishCommittee(ctx, e)
}

func (g *gatedSender) PublishPlaintext(ctx context.Context, e events.PlaintextOutputPublished) error {
	if !g.armed() {
		g.log.Debugw("chain write suppressed before EffectsEnabled", "kind", e.Kind())
		return nil
	}
	return g.inner.PublishPlaintext(ctx, e)
}
