package events

// noE3id is embedded by payloads that are not scoped to a ceremony.
type noE3id struct{}

func (noE3id) E3id() (E3id, bool) { return E3id{}, false }

// scopedE3id is embedded by payloads that are scoped to a ceremony.
type scopedE3id struct{ Id E3id }

func (s scopedE3id) E3id() (E3id, bool) { return s.Id, true }

// ---- Lifecycle ----

type E3Requested struct {
	scopedE3id
	Seed       Seed
	ThresholdM uint32
	ThresholdN uint32
	Params     []byte // opaque encoded BFV parameters
}

func (E3Requested) Kind() Kind { return KindE3Requested }
func (p E3Requested) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.Seed[:]).
		U32(p.ThresholdM).U32(p.ThresholdN).BytesField(p.Params).Bytes()
}

type CommitteeRequested struct {
	scopedE3id
	Seed Seed
}

func (CommitteeRequested) Kind() Kind { return KindCommitteeRequested }
func (p CommitteeRequested) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.Seed[:]).Bytes()
}

type CiphernodeSelected struct {
	scopedE3id
	Node    string
	PartyId uint64
}

func (CiphernodeSelected) Kind() Kind { return KindCiphernodeSelected }
func (p CiphernodeSelected) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Str(p.Node).U64(p.PartyId).Bytes()
}

type CommitteeFinalized struct {
	scopedE3id
	Nodes      []string
	ThresholdM uint32
	ThresholdN uint32
}

func (CommitteeFinalized) Kind() Kind { return KindCommitteeFinalized }
func (p CommitteeFinalized) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).StrSlice(p.Nodes).U32(p.ThresholdM).U32(p.ThresholdN).Bytes()
}

type CommitteePublished struct {
	scopedE3id
	PublicKey []byte
}

func (CommitteePublished) Kind() Kind { return KindCommitteePublished }
func (p CommitteePublished) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.PublicKey).Bytes()
}

type PublicKeyAggregated struct {
	scopedE3id
	PublicKey []byte
}

func (PublicKeyAggregated) Kind() Kind { return KindPublicKeyAggregated }
func (p PublicKeyAggregated) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.PublicKey).Bytes()
}

type CiphertextOutputPublished struct {
	scopedE3id
	Ciphertext []byte
}

func (CiphertextOutputPublished) Kind() Kind { return KindCiphertextOutputPublished }
func (p CiphertextOutputPublished) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.Ciphertext).Bytes()
}

type PlaintextAggregated struct {
	scopedE3id
	DecryptedOutput []byte
}

func (PlaintextAggregated) Kind() Kind { return KindPlaintextAggregated }
func (p PlaintextAggregated) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.DecryptedOutput).Bytes()
}

type PlaintextOutputPublished struct {
	scopedE3id
	DecryptedOutput []byte
}

func (PlaintextOutputPublished) Kind() Kind { return KindPlaintextOutputPublished }
func (p PlaintextOutputPublished) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).BytesField(p.DecryptedOutput).Bytes()
}

type E3RequestComplete struct{ scopedE3id }

func (E3RequestComplete) Kind() Kind { return KindE3RequestComplete }
func (p E3RequestComplete) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Bytes()
}

type E3Failed struct {
	scopedE3id
	Stage  FailureStage
	Reason FailureReason
}

func (E3Failed) Kind() Kind { return KindE3Failed }
func (p E3Failed) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Str(string(p.Stage)).Str(string(p.Reason)).Bytes()
}

type E3StageChanged struct {
	scopedE3id
	NewStage Stage
}

func (E3StageChanged) Kind() Kind { return KindE3StageChanged }
func (p E3StageChanged) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Str(string(p.NewStage)).Bytes()
}

// ---- DKG ----

type ThresholdShareCreated struct {
	scopedE3id
	PartyId  uint64
	PkShare  []byte
	SkSSS    [][]byte // Shamir shares of the secret key, one per party
	EsiSSS   [][][]byte // [esi_per_ct][n] Shamir shares of smudging noise
}

func (ThresholdShareCreated) Kind() Kind { return KindThresholdShareCreated }
func (p ThresholdShareCreated) StableEncode(buf []byte) []byte {
	enc := NewEncoder(buf).E3idField(p.Id).U64(p.PartyId).BytesField(p.PkShare).BytesSlice(p.SkSSS)
	enc.U32(uint32(len(p.EsiSSS)))
	for _, row := range p.EsiSSS {
		enc.BytesSlice(row)
	}
	return enc.Bytes()
}

type ThresholdSharePending struct {
	scopedE3id
	PartyId uint64
}

func (ThresholdSharePending) Kind() Kind { return KindThresholdSharePending }
func (p ThresholdSharePending) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).U64(p.PartyId).Bytes()
}

type EncryptionKeyCreated struct {
	scopedE3id
	Node      string
	PublicKey []byte
}

func (EncryptionKeyCreated) Kind() Kind { return KindEncryptionKeyCreated }
func (p EncryptionKeyCreated) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Str(p.Node).BytesField(p.PublicKey).Bytes()
}

type EncryptionKeyPending struct{ scopedE3id }

func (EncryptionKeyPending) Kind() Kind { return KindEncryptionKeyPending }
func (p EncryptionKeyPending) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Bytes()
}

type DecryptionKeyShared struct {
	scopedE3id
	PartyId      uint64
	DShare       []byte
	ProofC4a     []byte
	ProofC4b     []byte
}

func (DecryptionKeyShared) Kind() Kind { return KindDecryptionKeyShared }
func (p DecryptionKeyShared) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).U64(p.PartyId).
		BytesField(p.DShare).BytesField(p.ProofC4a).BytesField(p.ProofC4b).Bytes()
}

type DecryptionShareProofsPending struct {
	scopedE3id
	PartyId uint64
}

func (DecryptionShareProofsPending) Kind() Kind { return KindDecryptionShareProofsPending }
func (p DecryptionShareProofsPending) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).U64(p.PartyId).Bytes()
}

type DkgProofSigned struct {
	scopedE3id
	PartyId   uint64
	ProofKind string
	Proof     []byte
}

func (DkgProofSigned) Kind() Kind { return KindDkgProofSigned }
func (p DkgProofSigned) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).U64(p.PartyId).Str(p.ProofKind).BytesField(p.Proof).Bytes()
}

// ---- Decryption ----

type DecryptionshareCreated struct {
	scopedE3id
	Node  string
	Share []byte
}

func (DecryptionshareCreated) Kind() Kind { return KindDecryptionshareCreated }
func (p DecryptionshareCreated) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Str(p.Node).BytesField(p.Share).Bytes()
}

type KeyshareCreated struct {
	scopedE3id
	Node      string
	PubKey    []byte
}

func (KeyshareCreated) Kind() Kind { return KindKeyshareCreated }
func (p KeyshareCreated) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).E3idField(p.Id).Str(p.Node).BytesField(p.PubKey).Bytes()
}

// ---- Infrastructure ----

type EvmSyncEventsReceived struct {
	noE3id
	ChainID uint64
	Raw     [][]byte
}

func (EvmSyncEventsReceived) Kind() Kind { return KindEvmSyncEventsReceived }
func (p EvmSyncEventsReceived) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).U64(p.ChainID).BytesSlice(p.Raw).Bytes()
}

type NetEventsReceived struct {
	noE3id
	Raw [][]byte
}

func (NetEventsReceived) Kind() Kind { return KindNetEventsReceived }
func (p NetEventsReceived) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).BytesSlice(p.Raw).Bytes()
}

type SyncRequest struct {
	noE3id
	AggregateId uint64
	SinceWall   uint64
	SinceLogic  uint64
}

func (SyncRequest) Kind() Kind { return KindSyncRequest }
func (p SyncRequest) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).U64(p.AggregateId).U64(p.SinceWall).U64(p.SinceLogic).Bytes()
}

type SyncEffect struct {
	noE3id
	AggregateId uint64
}

func (SyncEffect) Kind() Kind { return KindSyncEffect }
func (p SyncEffect) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).U64(p.AggregateId).Bytes()
}

type EffectsEnabled struct{ noE3id }

func (EffectsEnabled) Kind() Kind { return KindEffectsEnabled }
func (p EffectsEnabled) StableEncode(buf []byte) []byte { return NewEncoder(buf).Bytes() }

type Shutdown struct{ noE3id }

func (Shutdown) Kind() Kind { return KindShutdown }
func (p Shutdown) StableEncode(buf []byte) []byte { return NewEncoder(buf).Bytes() }

type EnclaveError struct {
	noE3id
	Etype   EType
	Message string
}

func (EnclaveError) Kind() Kind { return KindEnclaveError }
func (p EnclaveError) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).Str(string(p.Etype)).Str(p.Message).Bytes()
}

type CiphernodeAdded struct {
	noE3id
	ChainID uint64
	Address string
}

func (CiphernodeAdded) Kind() Kind { return KindCiphernodeAdded }
func (p CiphernodeAdded) StableEncode(buf []byte) []byte {
	return NewEncoder(buf).U64(p.ChainID).Str(p.Address).Bytes()
}

type OperatorActivationChanged struct {
	noE3id
	ChainID uint64
	Address string
	Active  bool
}

func (OperatorActivationChanged) Kind() Kind { return KindOperatorActivationChanged }
func (p OperatorActivationChanged) StableEncode(buf []byte) []byte {
	active := uint8(0)
	if p.Active {
		active = 1
	}
	return NewEncoder(buf).U64(p.ChainID).Str(p.Address).U8(active).Bytes()
}
