package hub

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const (
	methodGetUserProfile    = "/hub.HubService/GetUserProfile"
	methodGetLinksByFid     = "/hub.HubService/GetLinksByFid"
	methodGetLinksByTarget  = "/hub.HubService/GetLinksByTarget"
	methodGetOnChainSigners = "/hub.HubService/GetOnChainSignersByFid"
	methodSubmitMessage     = "/hub.HubService/SubmitMessage"
	methodSubscribe         = "/hub.HubService/Subscribe"
)

// Client is a thin pass-through to the upstream hub's RPCs. It reports
// upstream errors verbatim and never retries internally. A
// *grpc.ClientConn is safe for concurrent use without an external lock,
// so the adapter needs no mutex.
type Client struct {
	conn *grpc.ClientConn
}

// Connect builds the gRPC client for the upstream hub. serverURL is read
// from SERVER_URL by the caller. No connection is opened here: the client
// connects on its first RPC, so an unreachable hub is not reported by
// Connect.
func Connect(ctx context.Context, serverURL string) (*Client, error) {
	conn, err := grpc.NewClient(serverURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, fmt.Errorf("hub: couldn't build client: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) GetUserProfile(ctx context.Context, fid uint64) (*ProfileResponse, error) {
	req := &FidRequest{FID: fid}
	resp := &ProfileResponse{}
	if err := c.conn.Invoke(ctx, methodGetUserProfile, req, resp); err != nil {
		return nil, fmt.Errorf("hub: get user profile: %w", err)
	}
	return resp, nil
}

func (c *Client) GetLinksByFid(ctx context.Context, req LinksByFidRequest) (*LinksResponse, error) {
	resp := &LinksResponse{}
	if err := c.conn.Invoke(ctx, methodGetLinksByFid, &req, resp); err != nil {
		return nil, fmt.Errorf("hub: get links by fid: %w", err)
	}
	return resp, nil
}

func (c *Client) GetLinksByTarget(ctx context.Context, req LinksByTargetRequest) (*LinksResponse, error) {
	resp := &LinksResponse{}
	if err := c.conn.Invoke(ctx, methodGetLinksByTarget, &req, resp); err != nil {
		return nil, fmt.Errorf("hub: get links by target: %w", err)
	}
	return resp, nil
}

func (c *Client) GetOnChainSignersByFid(ctx context.Context, fid uint64) (*OnChainSignersResponse, error) {
	req := &FidRequest{FID: fid}
	resp := &OnChainSignersResponse{}
	if err := c.conn.Invoke(ctx, methodGetOnChainSigners, req, resp); err != nil {
		return nil, fmt.Errorf("hub: get on-chain signers: %w", err)
	}
	return resp, nil
}

// SubmitMessage relays a signed client message to the hub verbatim: msg is
// forwarded whole (Data, Signer, and Hash), not reduced to any single
// field.
func (c *Client) SubmitMessage(ctx context.Context, msg *Message) error {
	resp := &Message{}
	if err := c.conn.Invoke(ctx, methodSubmitMessage, msg, resp); err != nil {
		return fmt.Errorf("hub: submit message: %w", err)
	}
	return nil
}

// subscribeStreamDesc describes the hub's server-streaming Subscribe RPC,
// hand-declared since this adapter carries no generated client.
var subscribeStreamDesc = &grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

// Subscribe opens the hub's event stream with default parameters and
// returns a channel of decoded events. The channel is closed when the
// stream ends (error or EOF); the caller owns restart policy.
func (c *Client) Subscribe(ctx context.Context) (<-chan HubEvent, error) {
	stream, err := c.conn.NewStream(ctx, subscribeStreamDesc, methodSubscribe)
	if err != nil {
		return nil, fmt.Errorf("hub: couldn't build subscription: %w", err)
	}
	if err := stream.SendMsg(&SubscribeRequest{}); err != nil {
		return nil, fmt.Errorf("hub: couldn't send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("hub: couldn't close subscribe send side: %w", err)
	}

	out := make(chan HubEvent)
	go func() {
		defer close(out)
		for {
			var evt HubEvent
			if err := stream.RecvMsg(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
