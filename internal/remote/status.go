package remote

import (
	"context"
	"time"

	"github.com/azminug/autorun/internal/identity"
)

// StatusWriter covers the point writes the daemon makes about itself and the
// accounts it manages. These are off the liveness hot path.
type StatusWriter interface {
	SetDeviceOnline(ctx context.Context, hostID string, info map[string]string) error
	SetDeviceOffline(ctx context.Context, hostID string) error
	TouchDevice(ctx context.Context, hostID string, activeAccounts int) error
	UpdateAccountStatus(ctx context.Context, username string, fields map[string]interface{}) error
	LogEvent(ctx context.Context, kind string, data map[string]interface{}) error
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SetDeviceOnline marks this machine online in the device collection.
func (c *Client) SetDeviceOnline(ctx context.Context, hostID string, info map[string]string) error {
	data := map[string]interface{}{
		"status":         "online",
		"online_since":   nowStamp(),
		"last_heartbeat": nowStamp(),
	}
	if len(info) > 0 {
		data["machine_info"] = info
	}
	return c.Update(ctx, "devices/"+hostID, data)
}

// SetDeviceOffline marks this machine offline.
func (c *Client) SetDeviceOffline(ctx context.Context, hostID string) error {
	return c.Update(ctx, "devices/"+hostID, map[string]interface{}{
		"status":        "offline",
		"offline_since": nowStamp(),
	})
}

// TouchDevice refreshes the machine heartbeat. Called on every daemon
// heartbeat cycle so dashboards can tell live machines from dead ones.
func (c *Client) TouchDevice(ctx context.Context, hostID string, activeAccounts int) error {
	return c.Update(ctx, "devices/"+hostID, map[string]interface{}{
		"status":          "online",
		"last_heartbeat":  nowStamp(),
		"active_accounts": activeAccounts,
	})
}

// UpdateAccountStatus merges fields into an account's remote record.
func (c *Client) UpdateAccountStatus(ctx context.Context, username string, fields map[string]interface{}) error {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["last_update"] = nowStamp()
	return c.Update(ctx, "accounts/"+identity.Normalize(username), merged)
}

// LogEvent pushes an event record to the shared log collection.
func (c *Client) LogEvent(ctx context.Context, kind string, data map[string]interface{}) error {
	_, err := c.Push(ctx, "logs", map[string]interface{}{
		"type":      kind,
		"data":      data,
		"timestamp": nowStamp(),
	})
	return err
}

var _ StatusWriter = (*Client)(nil)
