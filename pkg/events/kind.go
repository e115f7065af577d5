package events

// Kind names an event variant. Values are stable wire strings: they appear
// in gossip payloads and bus topic filters, so they are never renumbered.
type Kind string

const (
	// Lifecycle
	KindE3Requested               Kind = "E3Requested"
	KindCommitteeRequested        Kind = "CommitteeRequested"
	KindCiphernodeSelected        Kind = "CiphernodeSelected"
	KindCommitteeFinalized        Kind = "CommitteeFinalized"
	KindCommitteePublished        Kind = "CommitteePublished"
	KindPublicKeyAggregated       Kind = "PublicKeyAggregated"
	KindCiphertextOutputPublished Kind = "CiphertextOutputPublished"
	KindPlaintextAggregated       Kind = "PlaintextAggregated"
	KindPlaintextOutputPublished  Kind = "PlaintextOutputPublished"
	KindE3RequestComplete         Kind = "E3RequestComplete"
	KindE3Failed                  Kind = "E3Failed"
	KindE3StageChanged            Kind = "E3StageChanged"

	// DKG
	KindThresholdShareCreated       Kind = "ThresholdShareCreated"
	KindThresholdSharePending       Kind = "ThresholdSharePending"
	KindEncryptionKeyCreated        Kind = "EncryptionKeyCreated"
	KindEncryptionKeyPending        Kind = "EncryptionKeyPending"
	KindDecryptionKeyShared         Kind = "DecryptionKeyShared"
	KindDecryptionShareProofsPending Kind = "DecryptionShareProofsPending"
	KindDkgProofSigned              Kind = "DkgProofSigned"

	// Decryption
	KindDecryptionshareCreated Kind = "DecryptionshareCreated"
	KindKeyshareCreated        Kind = "KeyshareCreated"

	// Infrastructure
	KindEvmSyncEventsReceived Kind = "EvmSyncEventsReceived"
	KindNetEventsReceived     Kind = "NetEventsReceived"
	KindSyncRequest           Kind = "SyncRequest"
	KindSyncEffect            Kind = "SyncEffect"
	KindEffectsEnabled        Kind = "EffectsEnabled"
	KindShutdown              Kind = "Shutdown"
	KindEnclaveError          Kind = "EnclaveError"

	// Registry maintenance (sortition input, spec §4.3)
	KindCiphernodeAdded          Kind = "CiphernodeAdded"
	KindOperatorActivationChanged Kind = "OperatorActivationChanged"

	// WildcardTopic subscribes to every kind (spec §4.1).
	WildcardTopic Kind = "*"
)

// Stage names the monotonic E3 ceremony stage (spec §3 invariant E4).
type Stage string

const (
	StageRequested         Stage = "Requested"
	StageCommitteeFinalized Stage = "CommitteeFinalized"
	StageKeyPublished      Stage = "KeyPublished"
	StageCiphertextReady   Stage = "CiphertextReady"
	StageComplete          Stage = "Complete"
	StageFailed            Stage = "Failed"
)

// stageOrder is the declared monotonic sequence non-failed ceremonies follow.
var stageOrder = []Stage{
	StageRequested,
	StageCommitteeFinalized,
	StageKeyPublished,
	StageCiphertextReady,
	StageComplete,
}

// StageIndex returns the position of s in the declared order, or -1 for
// StageFailed (which is a terminal stage reachable from any point).
func StageIndex(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValidStageTransition enforces invariant E4: no back-transitions, and
// Failed is reachable from anywhere.
func IsValidStageTransition(from, to Stage) bool {
	if to == StageFailed {
		return from != StageFailed
	}
	fi, ti := StageIndex(from), StageIndex(to)
	if fi == -1 || ti == -1 {
		return false
	}
	return ti == fi+1
}

// FailureReason names why a ceremony failed, echoing spec §3/§7/§8.
type FailureReason string

const (
	ReasonInsufficientCommitteeMembers FailureReason = "InsufficientCommitteeMembers"
	ReasonDKGInvalidShares             FailureReason = "DKGInvalidShares"
	ReasonDecryptionInvalidShares      FailureReason = "DecryptionInvalidShares"
	ReasonVerificationFailed           FailureReason = "VerificationFailed"
)

// FailureStage names which ceremony stage a failure occurred at, echoing the
// E3Failed(stage, reason) event payload shape of spec §3.
type FailureStage string

const (
	FailureStageCommitteeFormationTimeout FailureStage = "CommitteeFormationTimeout"
	FailureStageKeyPublished              FailureStage = "KeyPublished"
	FailureStageDecryptionTimeout         FailureStage = "DecryptionTimeout"
)

// EType classifies EnclaveError events per spec §7.
type EType string

const (
	ETypeData     EType = "Data"
	ETypeIO       EType = "IO"
	ETypeNet      EType = "Net"
	ETypeCrypto   EType = "Crypto"
	ETypeProtocol EType = "Protocol"
)
