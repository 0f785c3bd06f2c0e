package hub

// Wire shapes for the upstream hub. These types model exactly the subset
// of the hub's contract this gateway consumes.

// LinkType is the only link type this gateway handles.
const LinkType = "follow"

// MessageType distinguishes the message kinds the subscriber and link
// fetchers care about. Other message types exist upstream but are ignored.
type MessageType int

const (
	MessageTypeUnspecified MessageType = iota
	MessageTypeLinkAdd
	MessageTypeLinkRemove
	MessageTypeUserDataAdd
)

// UserDataBody carries the fid a MergeMessage user-data event refers to.
type UserDataBody struct {
	FID uint64
}

// LinkBody is the body of a link-add/link-remove message.
type LinkBody struct {
	Type      string
	TargetFID uint64
}

// MessageData is the decoded payload of a hub Message.
type MessageData struct {
	Type         MessageType
	FID          uint64
	Timestamp    uint64 // hub epoch seconds, see FCTimestampToUnix
	LinkBody     *LinkBody
	UserDataBody *UserDataBody
}

// Message is a signed hub message envelope.
type Message struct {
	Data   *MessageData
	Signer []byte
	Hash   []byte
}

// LinkActionKind distinguishes an add from a remove once decoded.
type LinkActionKind int

const (
	LinkActionAdd LinkActionKind = iota
	LinkActionRemove
)

// LinkAction is a decoded add/remove follow edge, ready for the repository
// to apply.
type LinkAction struct {
	Kind        LinkActionKind
	SourceFID   uint64
	TargetFID   uint64
	TimestampFC uint64
}

// DecodeLinkActions extracts LinkActions from a batch of hub messages,
// skipping anything that isn't a link-add/link-remove message.
func DecodeLinkActions(msgs []Message) []LinkAction {
	actions := make([]LinkAction, 0, len(msgs))
	for _, m := range msgs {
		if m.Data == nil || m.Data.LinkBody == nil {
			continue
		}
		var kind LinkActionKind
		switch m.Data.Type {
		case MessageTypeLinkAdd:
			kind = LinkActionAdd
		case MessageTypeLinkRemove:
			kind = LinkActionRemove
		default:
			continue
		}
		actions = append(actions, LinkAction{
			Kind:        kind,
			SourceFID:   m.Data.FID,
			TargetFID:   m.Data.LinkBody.TargetFID,
			TimestampFC: m.Data.Timestamp,
		})
	}
	return actions
}

// FCTimestampToUnix converts the hub's epoch-relative timestamp to a UNIX
// second count. On overflow the caller should default to epoch 0.
const hubEpochOffsetSeconds uint64 = 1609459200 // 2021-01-01T00:00:00Z, the Farcaster epoch

func FCTimestampToUnix(fcTimestamp uint64) (int64, bool) {
	sum := fcTimestamp + hubEpochOffsetSeconds
	if sum < fcTimestamp {
		return 0, false // overflow
	}
	return int64(sum), true
}

// OnChainEventType distinguishes the on-chain event kinds the subscriber
// cares about.
type OnChainEventType int

const (
	OnChainEventTypeUnspecified OnChainEventType = iota
	OnChainEventTypeSigner
)

// SignerEventType is Add or Remove for a signer mutation.
type SignerEventType int

const (
	SignerEventAdd SignerEventType = iota
	SignerEventRemove
)

// SignerEventBody is the body of a signer on-chain event.
type SignerEventBody struct {
	Key       []byte
	EventType SignerEventType
}

// OnChainEvent wraps a signer mutation (other on-chain event kinds exist
// upstream but are not handled here).
type OnChainEvent struct {
	Type            OnChainEventType
	FID             uint64
	SignerEventBody *SignerEventBody
}

// HubEventType is the top-level discriminator on the subscription stream.
type HubEventType int

const (
	HubEventTypeNone HubEventType = iota
	HubEventTypeMergeMessage
	HubEventTypeMergeOnChainEvent
	HubEventTypePruneMessage
	HubEventTypeRevokeMessage
	HubEventTypeMergeUsernameProof
)

// HubEvent is one item off the subscription stream.
type HubEvent struct {
	Type         HubEventType
	OnChainEvent *OnChainEvent // set iff Type == HubEventTypeMergeOnChainEvent
	Message      *Message      // set iff Type == HubEventTypeMergeMessage
}

// FidRequest/LinksByFidRequest/LinksByTargetRequest/SubscribeRequest are the
// request shapes the adapter sends upstream.
type FidRequest struct {
	FID uint64
}

type LinksByFidRequest struct {
	FID      uint64
	LinkType string
}

type LinksByTargetRequest struct {
	TargetFID uint64
	LinkType  string
}

type SubscribeRequest struct{}

// LinksResponse carries the raw messages the repository decodes into
// LinkActions.
type LinksResponse struct {
	Messages []Message
}

// ProfileResponse is the hub's answer to GetUserProfile.
type ProfileResponse struct {
	FID            uint64
	Username       *string
	DisplayName    *string
	Bio            *string
	URL            *string
	ProfilePicture *string
}

// OnChainSignersResponse answers GetOnChainSignersByFid, used by the `sync`
// CLI path to materialize a fid's signers without waiting on the
// subscription stream.
type OnChainSignersResponse struct {
	Events []OnChainEvent
}
