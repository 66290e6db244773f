package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"maunium.net/go/mautrix/id"

	"github.com/thellimist/mcprobe/internal/matrix"
)

var (
	flagHomeserver  string
	flagOutputDir   string
	flagBotUser     string
	flagDisplayName string
	flagBotAdmin    bool
	flagRoomName    string
	flagRoomAlias   string
	flagRoomTopic   string
	flagRoomID      string
	flagLimit       int
	flagAsBot       bool
	flagReadAsBot   bool
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Provision Matrix accounts and rooms for MCP testing",
	Long: `Provision the Matrix side of an MCP test setup on a Synapse homeserver.

Secrets are read from the config file or the environment only:
  MCPROBE_MATRIX_REGISTRATION_SECRET   shared secret for account registration
  MCPROBE_MATRIX_ADMIN_USER / _PASSWORD admin account used for rooms and user creation
  MCPROBE_MATRIX_ADMIN_TOKEN           admin access token, instead of a password
  MCPROBE_MATRIX_BOT_PASSWORD          password of the bot account`,
}

var registerBotCmd = &cobra.Command{
	Use:   "register-bot",
	Short: "Create the bot account, log it in and save its config file",
	Args:  cobra.NoArgs,
	RunE:  runRegisterBot,
}

var matrixLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as the admin (or --bot) account and print the session",
	Args:  cobra.NoArgs,
	RunE:  runMatrixLogin,
}

var createRoomCmd = &cobra.Command{
	Use:   "create-room",
	Short: "Create the test room, invite the bot and save the room info file",
	Args:  cobra.NoArgs,
	RunE:  runCreateRoom,
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Show recent messages in the test room",
	Args:  cobra.NoArgs,
	RunE:  runMessages,
}

func init() {
	pf := matrixCmd.PersistentFlags()
	pf.StringVar(&flagHomeserver, "homeserver", "", "homeserver URL (default from config, http://localhost:8008)")
	pf.StringVar(&flagOutputDir, "output-dir", "", "directory for bot config and room info files")
	pf.StringVar(&flagBotUser, "bot-user", "", "bot account local part")

	registerBotCmd.Flags().StringVar(&flagDisplayName, "display-name", "", "bot display name (default \"Bot <user>\")")
	registerBotCmd.Flags().BoolVar(&flagBotAdmin, "admin", false, "make the bot a server admin")

	matrixLoginCmd.Flags().BoolVar(&flagAsBot, "bot", false, "log in as the bot instead of the admin")

	cf := createRoomCmd.Flags()
	cf.StringVar(&flagRoomName, "name", "", "room name")
	cf.StringVar(&flagRoomAlias, "alias", "", "room alias local part")
	cf.StringVar(&flagRoomTopic, "topic", "", "room topic")

	mf := messagesCmd.Flags()
	mf.StringVar(&flagRoomID, "room", "", "room id (default from the room info file)")
	mf.IntVar(&flagLimit, "limit", 10, "number of events to fetch")
	mf.BoolVar(&flagReadAsBot, "bot", false, "read as the bot using its saved config, joining the room first")

	matrixCmd.AddCommand(registerBotCmd, matrixLoginCmd, createRoomCmd, messagesCmd)
}

func provisioner() *matrix.Provisioner {
	if flagHomeserver != "" {
		cfg.Matrix.Homeserver = flagHomeserver
	}
	return &matrix.Provisioner{Homeserver: cfg.Matrix.Homeserver, ServerName: cfg.MatrixServerName()}
}

func outputDir() string {
	if flagOutputDir != "" {
		return flagOutputDir
	}
	return cfg.Matrix.OutputDir
}

func botUser() (string, error) {
	if flagBotUser != "" {
		return flagBotUser, nil
	}
	if cfg.Matrix.BotUsername != "" {
		return cfg.Matrix.BotUsername, nil
	}
	return "", errors.New("no bot account given: use --bot-user or set matrix.bot_username")
}

// adminSession uses the configured admin token, or logs in with the admin
// password.
func adminSession(ctx context.Context, p *matrix.Provisioner) (*matrix.Session, error) {
	m := cfg.Matrix
	if m.AdminToken != "" {
		var userID id.UserID
		if m.AdminUser != "" {
			userID = matrix.FullUserID(m.AdminUser, p.ServerName)
		}
		return &matrix.Session{Homeserver: p.Homeserver, UserID: userID, AccessToken: m.AdminToken}, nil
	}
	if m.AdminUser == "" || m.AdminPassword == "" {
		return nil, errors.New("no admin credentials: set MCPROBE_MATRIX_ADMIN_TOKEN, or MCPROBE_MATRIX_ADMIN_USER and MCPROBE_MATRIX_ADMIN_PASSWORD")
	}
	return p.Login(ctx, m.AdminUser, m.AdminPassword, "", "mcprobe admin")
}

// botSession loads the session saved by register-bot. Its homeserver wins
// unless --homeserver was given.
func botSession(p *matrix.Provisioner) (*matrix.Session, error) {
	user, err := botUser()
	if err != nil {
		return nil, err
	}
	session, err := matrix.LoadBotConfig(outputDir(), user)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no saved session for %s: run 'mcprobe matrix register-bot' first", user)
		}
		return nil, err
	}
	if flagHomeserver == "" && session.Homeserver != "" {
		p.Homeserver = session.Homeserver
	}
	return session, nil
}

func runRegisterBot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newPrinter(cmd)
	p := provisioner()

	user, err := botUser()
	if err != nil {
		return err
	}
	password := cfg.Matrix.BotPassword
	if password == "" {
		return errors.New("no bot password: set MCPROBE_MATRIX_BOT_PASSWORD or matrix.bot_password")
	}
	displayName := flagDisplayName
	if displayName == "" {
		displayName = cfg.Matrix.BotDisplayName
	}
	if displayName == "" {
		displayName = "Bot " + user
	}
	isAdmin := flagBotAdmin || cfg.Matrix.BotAdmin
	userID := matrix.FullUserID(user, p.ServerName)

	if secret := cfg.Matrix.RegistrationSecret; secret != "" {
		out.status("Registering %s with the shared secret...", userID)
		if _, err := p.RegisterWithSharedSecret(ctx, secret, user, password, isAdmin); err != nil {
			return err
		}
	} else {
		admin, err := adminSession(ctx, p)
		if err != nil {
			return err
		}
		out.status("Creating %s via the admin API...", userID)
		if err := p.CreateUser(ctx, admin, userID, password, displayName, isAdmin); err != nil {
			return err
		}
	}

	session, err := p.Login(ctx, user, password, "bot_"+user, displayName)
	if err != nil {
		return err
	}
	if err := p.SetDisplayName(ctx, session, displayName); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("could not set display name")
	}
	path, err := matrix.SaveBotConfig(outputDir(), user, session)
	if err != nil {
		return fmt.Errorf("saving bot config: %w", err)
	}

	if out.structured() {
		return out.encode(sessionView(session, path))
	}
	out.line("%s bot %s ready", green("✓"), session.UserID)
	out.line("  device:  %s", session.DeviceID)
	out.line("  config:  %s", path)
	return nil
}

func runMatrixLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newPrinter(cmd)
	p := provisioner()

	var session *matrix.Session
	var err error
	if flagAsBot {
		user, uerr := botUser()
		if uerr != nil {
			return uerr
		}
		if cfg.Matrix.BotPassword == "" {
			return errors.New("no bot password: set MCPROBE_MATRIX_BOT_PASSWORD or matrix.bot_password")
		}
		session, err = p.Login(ctx, user, cfg.Matrix.BotPassword, "bot_"+user, "")
	} else {
		if cfg.Matrix.AdminUser == "" || cfg.Matrix.AdminPassword == "" {
			return errors.New("no admin credentials: set MCPROBE_MATRIX_ADMIN_USER and MCPROBE_MATRIX_ADMIN_PASSWORD")
		}
		session, err = p.Login(ctx, cfg.Matrix.AdminUser, cfg.Matrix.AdminPassword, "", "mcprobe admin")
	}
	if err != nil {
		return err
	}

	if out.structured() {
		return out.encode(sessionView(session, ""))
	}
	out.line("%s logged in as %s", green("✓"), session.UserID)
	out.line("  device:  %s", session.DeviceID)
	return nil
}

func runCreateRoom(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newPrinter(cmd)
	p := provisioner()

	admin, err := adminSession(ctx, p)
	if err != nil {
		return err
	}
	opts := matrix.RoomOptions{
		Name:  firstNonEmpty(flagRoomName, cfg.Matrix.RoomName),
		Alias: firstNonEmpty(flagRoomAlias, cfg.Matrix.RoomAlias),
		Topic: firstNonEmpty(flagRoomTopic, cfg.Matrix.RoomTopic),
	}
	if user, err := botUser(); err == nil {
		opts.Invite = []id.UserID{matrix.FullUserID(user, p.ServerName)}
	}

	out.status("Creating room %q...", opts.Name)
	info, err := p.CreateRoom(ctx, admin, opts)
	if err != nil {
		return err
	}
	path, err := matrix.SaveRoomInfo(outputDir(), info)
	if err != nil {
		return fmt.Errorf("saving room info: %w", err)
	}

	if out.structured() {
		return out.encode(roomView{
			RoomID:    string(info.RoomID),
			RoomAlias: info.RoomAlias,
			BotUserID: string(info.BotUserID),
			File:      path,
		})
	}
	out.line("%s room %s", green("✓"), info.RoomID)
	if info.RoomAlias != "" {
		out.line("  alias:   %s", info.RoomAlias)
	}
	if info.BotUserID != "" {
		out.line("  invited: %s", info.BotUserID)
	}
	out.line("  info:    %s", path)
	return nil
}

func runMessages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newPrinter(cmd)
	p := provisioner()

	roomID := id.RoomID(flagRoomID)
	if roomID == "" {
		info, err := matrix.LoadRoomInfo(outputDir())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return errors.New("no room given: use --room or run 'mcprobe matrix create-room' first")
			}
			return err
		}
		roomID = info.RoomID
	}
	if flagLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	var reader *matrix.Session
	if flagReadAsBot {
		session, err := botSession(p)
		if err != nil {
			return err
		}
		if err := p.JoinRoom(ctx, session, roomID); err != nil {
			return err
		}
		reader = session
	} else {
		admin, err := adminSession(ctx, p)
		if err != nil {
			return err
		}
		reader = admin
	}
	messages, err := p.RecentMessages(ctx, reader, roomID, flagLimit)
	if err != nil {
		return err
	}

	if out.structured() {
		return out.encode(messages)
	}
	out.line("%s (%d) in %s", bold("Messages"), len(messages), roomID)
	for _, m := range messages {
		formatted := ""
		if m.HasFormatted {
			formatted = " " + faint("[formatted]")
		}
		out.line("%s %s %s%s", faint(m.Timestamp.Format("15:04:05")), bold(string(m.Sender)), faint(m.MsgType), formatted)
		out.line("  %s", truncate(m.Body, 200))
	}
	return nil
}

type sessionOutput struct {
	Homeserver string `json:"homeserver" yaml:"homeserver"`
	UserID     string `json:"user_id" yaml:"user_id"`
	DeviceID   string `json:"device_id" yaml:"device_id"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
}

// sessionView leaves the access token out of printed output.
func sessionView(s *matrix.Session, file string) sessionOutput {
	return sessionOutput{Homeserver: s.Homeserver, UserID: string(s.UserID), DeviceID: string(s.DeviceID), File: file}
}

type roomView struct {
	RoomID    string `json:"room_id" yaml:"room_id"`
	RoomAlias string `json:"room_alias,omitempty" yaml:"room_alias,omitempty"`
	BotUserID string `json:"bot_user_id,omitempty" yaml:"bot_user_id,omitempty"`
	File      string `json:"file" yaml:"file"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
