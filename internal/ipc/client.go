package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the agent daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the agent status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Beacond.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Flush runs a flush cycle immediately.
func (c *Client) Flush() (*FlushResponse, error) {
	var resp FlushResponse
	if err := c.client.Call("Beacond.Flush", FlushRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PanicActivate starts a panic session.
func (c *Client) PanicActivate() (*PanicActivateResponse, error) {
	var resp PanicActivateResponse
	if err := c.client.Call("Beacond.PanicActivate", PanicActivateRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PanicDeactivate resolves the active panic session.
func (c *Client) PanicDeactivate() (*PanicDeactivateResponse, error) {
	var resp PanicDeactivateResponse
	if err := c.client.Call("Beacond.PanicDeactivate", PanicDeactivateRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStats fetches outbox counts by status.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	var resp QueueStatsResponse
	if err := c.client.Call("Beacond.QueueStats", QueueStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryFailed returns failed items to the pending pool.
func (c *Client) RetryFailed() (*RetryFailedResponse, error) {
	var resp RetryFailedResponse
	if err := c.client.Call("Beacond.RetryFailed", RetryFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PurgeSent removes delivered items from the outbox.
func (c *Client) PurgeSent() (*PurgeSentResponse, error) {
	var resp PurgeSentResponse
	if err := c.client.Call("Beacond.PurgeSent", PurgeSentRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
