package probe

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"

	a2s "github.com/rumblefrog/go-a2s"
)

// DefaultTimeout bounds a single query, challenge round trip included
const DefaultTimeout = 5 * time.Second

// ServerInfo is the A2S_INFO answer of a running game server
type ServerInfo struct {
	Address          string `json:"address"`
	Protocol         uint8  `json:"protocol"`
	Name             string `json:"name"`
	Map              string `json:"map"`
	Folder           string `json:"folder"`
	Game             string `json:"game"`
	AppID            uint16 `json:"app_id"`
	Players          int    `json:"players"`
	MaxPlayers       int    `json:"max_players"`
	Bots             int    `json:"bots"`
	ServerType       string `json:"server_type"`
	Environment      string `json:"environment"`
	PasswordRequired bool   `json:"password_required"`
	VACSecured       bool   `json:"vac_secured"`
	Version          string `json:"version"`
	GamePort         int    `json:"game_port,omitempty"`
	Keywords         string `json:"keywords,omitempty"`
}

// Prober answers whether a server is reachable and with what metadata.
// Any error means "no data".
type Prober interface {
	Query(ctx context.Context, address string) (*ServerInfo, error)
}

type Client struct {
	Timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Timeout: timeout}
}

func (c *Client) Query(ctx context.Context, address string) (*ServerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("query cancelled", err).WithContext("address", address)
	}

	timeout := c.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	client, err := a2s.NewClient(address, a2s.TimeoutOption(timeout))
	if err != nil {
		return nil, errors.NewNetworkError("failed to open query socket", err).WithContext("address", address)
	}
	defer client.Close()

	// Closing the socket unblocks a pending read when ctx ends first
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	reply, err := client.QueryInfo()
	if err != nil {
		return nil, queryError(ctx, err, address)
	}

	info := fromA2S(reply)
	info.Address = address
	return info, nil
}

func fromA2S(reply *a2s.ServerInfo) *ServerInfo {
	info := &ServerInfo{
		Protocol:         reply.Protocol,
		Name:             reply.Name,
		Map:              reply.Map,
		Folder:           reply.Folder,
		Game:             reply.Game,
		AppID:            reply.ID,
		Players:          int(reply.Players),
		MaxPlayers:       int(reply.MaxPlayers),
		Bots:             int(reply.Bots),
		ServerType:       strings.ToLower(reply.ServerType.String()),
		Environment:      strings.ToLower(reply.ServerOS.String()),
		PasswordRequired: reply.Visibility,
		VACSecured:       reply.VAC,
		Version:          reply.Version,
	}
	if extended := reply.ExtendedServerInfo; extended != nil {
		info.GamePort = int(extended.Port)
		info.Keywords = extended.Keywords
	}
	return info
}

func queryError(ctx context.Context, err error, address string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.NewTimeoutError("query timed out", err).WithContext("address", address)
		}
		return errors.NewCancelledError("query cancelled", ctxErr).WithContext("address", address)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeoutError("query timed out", err).WithContext("address", address)
	}
	return errors.NewHealthCheckError("invalid query reply", err).WithContext("address", address)
}
