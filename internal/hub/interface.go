package hub

import "context"

// HubClient is the capability set consumed by the rest of the gateway.
// *Client implements it against a live gRPC connection; tests substitute a
// fake.
type HubClient interface {
	GetUserProfile(ctx context.Context, fid uint64) (*ProfileResponse, error)
	GetLinksByFid(ctx context.Context, req LinksByFidRequest) (*LinksResponse, error)
	GetLinksByTarget(ctx context.Context, req LinksByTargetRequest) (*LinksResponse, error)
	GetOnChainSignersByFid(ctx context.Context, fid uint64) (*OnChainSignersResponse, error)
	SubmitMessage(ctx context.Context, msg *Message) error
	Subscribe(ctx context.Context) (<-chan HubEvent, error)
}

var _ HubClient = (*Client)(nil)
