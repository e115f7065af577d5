// Package netpeer implements the gossip transport behind spec §4.10's
// NetPeer adapter: a single libp2p-pubsub topic carrying wire-encoded
// events in both directions. Outgoing events are handed to Publish as
// already-encoded bytes (produced by events.EncodeEvent); incoming
// messages are batched into events.NetEventsReceived and resubmitted
// through a caller-supplied Submitter, same as the sync package does
// with events it unwraps from gossip.
//
// Grounded on lp2p/ctor.go's ConstructHost (host + gossipsub wiring) and
// lp2p/relaynode.go's GossipRelayNode (a single topic, a background
// drain loop, Shutdown via a done channel), generalized from "relay
// drand randomness to one well-known topic" to "gossip any wire-encoded
// event to one topic per network".
package netpeer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"github.com/libp2p/go-libp2p"
	connmgr "github.com/libp2p/go-libp2p-connmgr"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/peer"
	noise "github.com/libp2p/go-libp2p-noise"
	"github.com/libp2p/go-libp2p-peerstore/pstoreds"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsubpb "github.com/libp2p/go-libp2p-pubsub/pb"
	libp2ptls "github.com/libp2p/go-libp2p-tls"
	ma "github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"
	"golang.org/x/crypto/blake2b"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

const (
	userAgent          = "enclave-ciphernode/0.0.0"
	directConnectTicks = uint64(5)
	lowWater           = 50
	highWater          = 200
	gracePeriod        = time.Minute
	bootstrapTimeout   = 5 * time.Second
	dnsResolveTimeout  = 10 * time.Second
	// batchWindow is how long the node accumulates incoming gossip
	// messages before handing them to the sequencer as one
	// NetEventsReceived batch.
	batchWindow = 100 * time.Millisecond
)

// Topic returns the pubsub topic name for a given network id, namespaced
// the way lp2p's PubSubTopic namespaces drand's chain hash.
func Topic(networkID string) string {
	return fmt.Sprintf("/enclave/gossip/v0/%s", networkID)
}

// Submitter hands a batch of decoded wire bytes to the sequencer,
// mirroring sync.Manager's onBusEvent path.
type Submitter func(events.Unsequenced) error

// Config configures a Node.
type Config struct {
	Log          elog.Logger
	NetworkID    string
	ListenAddr   string   // empty means no listen addresses (outbound-only)
	Bootstrap    []string // multiaddrs of peers to connect and stay connected to
	IdentityPath string   // file holding the base64 libp2p private key
	Datastore    datastore.Datastore
	Submit       Submitter
}

// Node is a running libp2p host joined to one gossip topic.
type Node struct {
	log    elog.Logger
	h      host.Host
	ps     *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	submit Submitter

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// New constructs the host, joins the network's topic, and starts the
// incoming-message drain loop.
func New(ctx context.Context, cfg Config) (*Node, error) {
	priv, err := LoadOrCreatePrivKey(cfg.IdentityPath, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("loading libp2p identity: %w", err)
	}

	bootstrap, err := ParseMultiaddrs(cfg.Bootstrap)
	if err != nil {
		return nil, fmt.Errorf("parsing bootstrap peers: %w", err)
	}

	h, ps, err := constructHost(ctx, cfg.Datastore, priv, cfg.ListenAddr, bootstrap, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("constructing host: %w", err)
	}

	t, err := ps.Join(Topic(cfg.NetworkID))
	if err != nil {
		return nil, fmt.Errorf("joining topic: %w", err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribing to topic: %w", err)
	}

	n := &Node{
		log:    cfg.Log,
		h:      h,
		ps:     ps,
		topic:  t,
		sub:    sub,
		submit: cfg.Submit,
		done:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.drain(ctx)
	return n, nil
}

// Publish gossips a single wire-encoded event to every peer on the topic.
func (n *Node) Publish(ctx context.Context, wire []byte) error {
	return n.topic.Publish(ctx, wire)
}

// PeerID is this node's libp2p identity.
func (n *Node) PeerID() peer.ID { return n.h.ID() }

// Addrs returns dialable multiaddrs for this node, including its peer id.
func (n *Node) Addrs() []ma.Multiaddr {
	base := n.h.Addrs()
	out := make([]ma.Multiaddr, 0, len(base))
	for _, a := range base {
		full, err := ma.NewMultiaddr(fmt.Sprintf("%s/p2p/%s", a, n.h.ID()))
		if err != nil {
			continue
		}
		out = append(out, full)
	}
	return out
}

// Close stops the drain loop and tears down the host.
func (n *Node) Close() error {
	n.mu.Lock()
	select {
	case <-n.done:
		n.mu.Unlock()
		return nil
	default:
		close(n.done)
	}
	n.mu.Unlock()
	n.wg.Wait()
	n.sub.Cancel()
	return n.h.Close()
}

// drain batches incoming pubsub messages and submits them as
// NetEventsReceived, the same shape sync.Manager consumes over the bus.
func (n *Node) drain(ctx context.Context) {
	defer n.wg.Done()
	msgs := make(chan *pubsub.Message, 32)
	go func() {
		for {
			m, err := n.sub.Next(ctx)
			if err != nil {
				close(msgs)
				return
			}
			if m.ReceivedFrom == n.h.ID() {
				continue // drand's gossipsub floods self messages back; drop our own
			}
			select {
			case msgs <- m:
			case <-n.done:
				return
			}
		}
	}()

	var batch [][]byte
	timer := time.NewTimer(batchWindow)
	defer timer.Stop()
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if n.submit != nil {
			if err := n.submit(events.Unsequenced{Payload: events.NetEventsReceived{Raw: batch}}); err != nil {
				n.log.Errorw("netpeer: failed to submit received batch", "err", err)
			}
		}
		batch = nil
	}

	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				flush()
				return
			}
			batch = append(batch, m.Data)
		case <-timer.C:
			flush()
			timer.Reset(batchWindow)
		case <-n.done:
			flush()
			return
		}
	}
}

func constructHost(ctx context.Context, ds datastore.Datastore, priv crypto.PrivKey, listenAddr string,
	bootstrap []ma.Multiaddr, log elog.Logger) (host.Host, *pubsub.PubSub, error) {
	if ds == nil {
		ds = datastore.NewMapDatastore()
	}
	pstoreDs := namespace.Wrap(ds, datastore.NewKey("/peerstore"))
	pstore, err := pstoreds.NewPeerstore(ctx, pstoreDs, pstoreds.DefaultOpts())
	if err != nil {
		return nil, nil, fmt.Errorf("creating peerstore: %w", err)
	}
	peerID, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("computing peer id: %w", err)
	}
	if err := pstore.AddPrivKey(peerID, priv); err != nil {
		return nil, nil, fmt.Errorf("adding priv key to peerstore: %w", err)
	}

	addrInfos, err := resolveAddresses(ctx, bootstrap, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving bootstrap addrs: %w", err)
	}

	cmgr := connmgr.NewConnManager(lowWater, highWater, gracePeriod)
	opts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.ChainOptions(
			libp2p.Security(libp2ptls.ID, libp2ptls.New),
			libp2p.Security(noise.ID, noise.New)),
		libp2p.UserAgent(userAgent),
		libp2p.ConnectionManager(cmgr),
	}
	if listenAddr != "" {
		opts = append(opts, libp2p.ListenAddrStrings(listenAddr))
	} else {
		opts = append(opts, libp2p.NoListenAddrs)
	}

	h, err := libp2p.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithPeerExchange(true),
		pubsub.WithMessageIdFn(func(pmsg *pubsubpb.Message) string {
			hash := blake2b.Sum256(pmsg.Data)
			return string(hash[:])
		}),
		pubsub.WithDirectPeers(addrInfos),
		pubsub.WithFloodPublish(true),
		pubsub.WithDirectConnectTicks(directConnectTicks),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing gossipsub: %w", err)
	}

	go func() {
		for _, ai := range addrInfos {
			bctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			err := h.Connect(bctx, ai)
			cancel()
			if err != nil {
				log.Warnw("netpeer: could not bootstrap", "addr", ai, "err", err)
			}
		}
	}()
	return h, ps, nil
}

// resolveAddresses resolves DNS multiaddrs to dialable peer.AddrInfo, same
// shape as lp2p/addrutil.go's resolveAddresses.
func resolveAddresses(ctx context.Context, addrs []ma.Multiaddr, resolver *madns.Resolver) ([]peer.AddrInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, dnsResolveTimeout)
	defer cancel()
	if resolver == nil {
		resolver = madns.DefaultResolver
	}

	var maddrs []ma.Multiaddr
	var wg sync.WaitGroup
	errs := make(chan error, len(addrs))
	resolved := make(chan ma.Multiaddr)

	for _, addr := range addrs {
		if _, last := ma.SplitLast(addr); last != nil && last.Protocol().Code == ma.P_P2P {
			maddrs = append(maddrs, addr)
			continue
		}
		wg.Add(1)
		go func(maddr ma.Multiaddr) {
			defer wg.Done()
			raddrs, err := resolver.Resolve(ctx, maddr)
			if err != nil {
				errs <- fmt.Errorf("resolving %q: %w", maddr, err)
				return
			}
			found := 0
			for _, raddr := range raddrs {
				if _, last := ma.SplitLast(raddr); last != nil && last.Protocol().Code == ma.P_P2P {
					resolved <- raddr
					found++
				}
			}
			if found == 0 {
				errs <- fmt.Errorf("no dialable peers resolved at %s", maddr)
			}
		}(addr)
	}
	go func() {
		wg.Wait()
		close(resolved)
	}()
	for r := range resolved {
		maddrs = append(maddrs, r)
	}
	select {
	case err := <-errs:
		return nil, err
	default:
	}
	return peer.AddrInfosFromP2pAddrs(maddrs...)
}

// ParseMultiaddrs parses a list of multiaddr strings.
func ParseMultiaddrs(addrs []string) ([]ma.Multiaddr, error) {
	out := make([]ma.Multiaddr, len(addrs))
	for i, a := range addrs {
		m, err := ma.NewMultiaddr(a)
		if err != nil {
			return nil, fmt.Errorf("parsing multiaddr %q: %w", a, err)
		}
		out[i] = m
	}
	return out, nil
}

// LoadOrCreatePrivKey loads a base64-encoded ed25519 libp2p identity from
// identityPath, generating and persisting a fresh one if absent. Backs the
// `net generate`/`net get-peer-id` CLI commands.
func LoadOrCreatePrivKey(identityPath string, log elog.Logger) (crypto.PrivKey, error) {
	raw, err := os.ReadFile(identityPath)
	switch {
	case err == nil:
		keyBytes, err := base64.RawStdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding identity file: %w", err)
		}
		priv, err := crypto.UnmarshalEd25519PrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling ed25519 identity: %w", err)
		}
		log.Infow("netpeer: loaded libp2p identity", "path", identityPath)
		return priv, nil

	case os.IsNotExist(err):
		priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating ed25519 identity: %w", err)
		}
		if err := persistPrivKey(identityPath, priv); err != nil {
			return nil, err
		}
		log.Infow("netpeer: generated new libp2p identity", "path", identityPath)
		return priv, nil

	default:
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
}

func persistPrivKey(identityPath string, priv crypto.PrivKey) error {
	raw, err := priv.Raw()
	if err != nil {
		return fmt.Errorf("marshaling identity: %w", err)
	}
	if err := os.MkdirAll(path.Dir(identityPath), 0o755); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	encoded := base64.RawStdEncoding.EncodeToString(raw)
	return os.WriteFile(identityPath, []byte(encoded), 0o600)
}

// ImportPrivKey persists a caller-provided base64-encoded ed25519 identity
// at identityPath, backing `net set`.
func ImportPrivKey(identityPath, encoded string) error {
	keyBytes, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding provided identity: %w", err)
	}
	priv, err := crypto.UnmarshalEd25519PrivateKey(keyBytes)
	if err != nil {
		return fmt.Errorf("unmarshaling provided identity: %w", err)
	}
	return persistPrivKey(identityPath, priv)
}

// PurgeIdentity removes a persisted libp2p identity, backing `net purge`.
func PurgeIdentity(identityPath string) error {
	err := os.Remove(identityPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
