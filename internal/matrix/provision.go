// Package matrix provisions the accounts and rooms used to test MCP servers
// that talk to Matrix: shared-secret registration and admin user creation on
// Synapse, password login, room creation and reading back recent messages.
package matrix

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Provisioner talks to one homeserver.
type Provisioner struct {
	Homeserver string
	// ServerName is the domain part of user ids on this homeserver.
	ServerName string
	// HTTPClient is used for every request when set.
	HTTPClient *http.Client
}

// Session is a logged-in account. It is also the format of the saved bot
// config file; the password is never part of it.
type Session struct {
	Homeserver  string      `json:"homeserver"`
	UserID      id.UserID   `json:"user_id"`
	AccessToken string      `json:"access_token"`
	DeviceID    id.DeviceID `json:"device_id"`
}

// RoomOptions describes a room to create.
type RoomOptions struct {
	Name  string
	Alias string // local part, without '#' or server name
	Topic string
	// Invite lists users invited at creation, usually the bot under test.
	Invite []id.UserID
}

// RoomInfo is what gets saved to the room info file.
type RoomInfo struct {
	RoomID    id.RoomID `json:"room_id"`
	RoomAlias string    `json:"room_alias,omitempty"`
	BotUserID id.UserID `json:"bot_user_id,omitempty"`
}

// Message is an m.room.message event reduced to what a tester inspects.
type Message struct {
	EventID      id.EventID `json:"event_id" yaml:"event_id"`
	Sender       id.UserID  `json:"sender" yaml:"sender"`
	MsgType      string     `json:"msgtype" yaml:"msgtype"`
	Body         string     `json:"body" yaml:"body"`
	HasFormatted bool       `json:"has_formatted_body" yaml:"has_formatted_body"`
	Timestamp    time.Time  `json:"timestamp" yaml:"timestamp"`
}

// FullUserID turns a local part into @localpart:serverName. Values that are
// already full user ids are returned unchanged.
func FullUserID(user, serverName string) id.UserID {
	if strings.HasPrefix(user, "@") {
		return id.UserID(user)
	}
	return id.NewUserID(user, serverName)
}

// RegistrationMAC computes the Synapse shared-secret registration MAC: the
// hex HMAC-SHA1 of nonce, user, password and "admin" or "notadmin", joined
// by NUL bytes.
func RegistrationMAC(secret, nonce, user, password string, admin bool) string {
	role := "notadmin"
	if admin {
		role = "admin"
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(strings.Join([]string{nonce, user, password, role}, "\x00")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *Provisioner) client(ctx context.Context, userID id.UserID, token string) (*mautrix.Client, error) {
	cli, err := mautrix.NewClient(p.Homeserver, userID, token)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	if p.HTTPClient != nil {
		cli.Client = p.HTTPClient
	}
	cli.Log = *zerolog.Ctx(ctx)
	return cli, nil
}

func (p *Provisioner) adminURL(cli *mautrix.Client, path ...string) string {
	return cli.HomeserverURL.JoinPath(append([]string{"_synapse", "admin"}, path...)...).String()
}

type registerRequest struct {
	Nonce    string `json:"nonce"`
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
	MAC      string `json:"mac"`
}

// RegisterWithSharedSecret creates an account with the homeserver's
// registration shared secret: it fetches a nonce, signs the request with
// RegistrationMAC and posts it.
func (p *Provisioner) RegisterWithSharedSecret(ctx context.Context, secret, user, password string, admin bool) (id.UserID, error) {
	if secret == "" {
		return "", fmt.Errorf("register %s: no registration shared secret configured", user)
	}
	cli, err := p.client(ctx, "", "")
	if err != nil {
		return "", err
	}
	registerURL := p.adminURL(cli, "v1", "register")

	var nonceResp struct {
		Nonce string `json:"nonce"`
	}
	if _, err := cli.MakeRequest(ctx, http.MethodGet, registerURL, nil, &nonceResp); err != nil {
		return "", fmt.Errorf("get registration nonce: %w", err)
	}
	if nonceResp.Nonce == "" {
		return "", fmt.Errorf("get registration nonce: empty nonce")
	}

	req := &registerRequest{
		Nonce:    nonceResp.Nonce,
		Username: user,
		Password: password,
		Admin:    admin,
		MAC:      RegistrationMAC(secret, nonceResp.Nonce, user, password, admin),
	}
	var resp mautrix.RespRegister
	if _, err := cli.MakeRequest(ctx, http.MethodPost, registerURL, req, &resp); err != nil {
		return "", fmt.Errorf("register %s: %w", user, err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", string(resp.UserID)).Msg("registered account")
	return resp.UserID, nil
}

type createUserRequest struct {
	Password    string `json:"password"`
	DisplayName string `json:"displayname,omitempty"`
	Admin       bool   `json:"admin"`
	Deactivated bool   `json:"deactivated"`
}

// CreateUser creates or updates userID through the Synapse admin API. The
// admin session must belong to a server admin.
func (p *Provisioner) CreateUser(ctx context.Context, admin *Session, userID id.UserID, password, displayName string, isAdmin bool) error {
	cli, err := p.client(ctx, admin.UserID, admin.AccessToken)
	if err != nil {
		return err
	}
	req := &createUserRequest{Password: password, DisplayName: displayName, Admin: isAdmin}
	if _, err := cli.MakeRequest(ctx, http.MethodPut, p.adminURL(cli, "v2", "users", string(userID)), req, nil); err != nil {
		return fmt.Errorf("create user %s: %w", userID, err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", string(userID)).Msg("created account via admin API")
	return nil
}

// Login performs a password login. deviceID and deviceName may be empty.
func (p *Provisioner) Login(ctx context.Context, user, password, deviceID, deviceName string) (*Session, error) {
	cli, err := p.client(ctx, "", "")
	if err != nil {
		return nil, err
	}
	resp, err := cli.Login(ctx, &mautrix.ReqLogin{
		Type:                     mautrix.AuthTypePassword,
		Identifier:               mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: user},
		Password:                 password,
		DeviceID:                 id.DeviceID(deviceID),
		InitialDeviceDisplayName: deviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", user, err)
	}
	return &Session{
		Homeserver:  p.Homeserver,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		DeviceID:    resp.DeviceID,
	}, nil
}

// SetDisplayName sets the display name of the session's own account.
func (p *Provisioner) SetDisplayName(ctx context.Context, s *Session, name string) error {
	cli, err := p.client(ctx, s.UserID, s.AccessToken)
	if err != nil {
		return err
	}
	if err := cli.SetDisplayName(ctx, name); err != nil {
		return fmt.Errorf("set display name: %w", err)
	}
	return nil
}

// CreateRoom creates a private room and invites opts.Invite.
func (p *Provisioner) CreateRoom(ctx context.Context, s *Session, opts RoomOptions) (*RoomInfo, error) {
	cli, err := p.client(ctx, s.UserID, s.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err := cli.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Name:          opts.Name,
		RoomAliasName: opts.Alias,
		Topic:         opts.Topic,
		Preset:        "private_chat",
		Invite:        opts.Invite,
	})
	if err != nil {
		return nil, fmt.Errorf("create room %q: %w", opts.Name, err)
	}

	info := &RoomInfo{RoomID: resp.RoomID}
	if opts.Alias != "" {
		info.RoomAlias = fmt.Sprintf("#%s:%s", opts.Alias, p.ServerName)
	}
	if len(opts.Invite) > 0 {
		info.BotUserID = opts.Invite[0]
	}
	return info, nil
}

// JoinRoom joins roomID as the session's account. Joining a room the
// account is already in is a no-op on the server.
func (p *Provisioner) JoinRoom(ctx context.Context, s *Session, roomID id.RoomID) error {
	cli, err := p.client(ctx, s.UserID, s.AccessToken)
	if err != nil {
		return err
	}
	if _, err := cli.JoinRoomByID(ctx, roomID); err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}
	return nil
}

// RecentMessages returns up to limit of the newest m.room.message events in
// roomID, newest first. Other event types are skipped.
func (p *Provisioner) RecentMessages(ctx context.Context, s *Session, roomID id.RoomID, limit int) ([]Message, error) {
	cli, err := p.client(ctx, s.UserID, s.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Messages(ctx, roomID, "", "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", roomID, err)
	}

	messages := make([]Message, 0, len(resp.Chunk))
	for _, evt := range resp.Chunk {
		if evt.Type.Type != event.EventMessage.Type {
			continue
		}
		var content struct {
			MsgType       string `json:"msgtype"`
			Body          string `json:"body"`
			FormattedBody string `json:"formatted_body"`
		}
		if err := json.Unmarshal(evt.Content.VeryRaw, &content); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("event_id", string(evt.ID)).Msg("skipping undecodable message")
			continue
		}
		messages = append(messages, Message{
			EventID:      evt.ID,
			Sender:       evt.Sender,
			MsgType:      content.MsgType,
			Body:         content.Body,
			HasFormatted: content.FormattedBody != "",
			Timestamp:    time.UnixMilli(evt.Timestamp),
		})
	}
	return messages, nil
}
