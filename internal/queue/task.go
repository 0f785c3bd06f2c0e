package queue

// TaskKind enumerates the indexing jobs the scheduler can dispatch.
type TaskKind int

const (
	TaskIndexFid TaskKind = iota
	TaskIndexLinks
	TaskIndexFidCasts
	TaskIndexCast
	TaskUpdateSigner
)

func (k TaskKind) String() string {
	switch k {
	case TaskIndexFid:
		return "index_fid"
	case TaskIndexLinks:
		return "index_links"
	case TaskIndexFidCasts:
		return "index_fid_casts"
	case TaskIndexCast:
		return "index_cast"
	case TaskUpdateSigner:
		return "update_signer"
	default:
		return "unknown"
	}
}

// Task is the unit of work placed on the TaskQueue. It is built from
// plain comparable fields only (no slices) so a Task value can be used
// directly as a LastRunMap key: the signer's public key travels as hex
// text rather than raw bytes. Force is part of task identity, so a forced
// and a non-forced request for the same fid debounce independently.
type Task struct {
	Kind         TaskKind
	FID          uint64
	Force        bool
	SignerPKHex  string
	SignerActive bool
	CastID       string
}

func NewIndexFid(fid uint64, force bool) Task {
	return Task{Kind: TaskIndexFid, FID: fid, Force: force}
}

func NewIndexLinks(fid uint64, force bool) Task {
	return Task{Kind: TaskIndexLinks, FID: fid, Force: force}
}

func NewIndexFidCasts(fid uint64) Task {
	return Task{Kind: TaskIndexFidCasts, FID: fid}
}

func NewIndexCast(fid uint64, castID string) Task {
	return Task{Kind: TaskIndexCast, FID: fid, CastID: castID}
}

// NewUpdateSigner builds the task the Subscriber emits on a signer
// on-chain event. pkHex must already be hex-encoded.
func NewUpdateSigner(pkHex string, fid uint64, active bool) Task {
	return Task{Kind: TaskUpdateSigner, FID: fid, SignerPKHex: pkHex, SignerActive: active}
}
