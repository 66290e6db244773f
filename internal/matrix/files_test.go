package matrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotConfigFilename(t *testing.T) {
	assert.Equal(t, "bot_mcpbot_config.json", BotConfigFilename("mcpbot"))
	assert.Equal(t, "bot_mcp-bot_config.json", BotConfigFilename("MCP_Bot"))
}

func TestBotConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	session := &Session{
		Homeserver:  "http://localhost:8008",
		UserID:      "@mcpbot:localhost",
		AccessToken: "bot-token",
		DeviceID:    "bot_mcpbot",
	}

	path, err := SaveBotConfig(dir, "mcpbot", session)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bot_mcpbot_config.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")

	loaded, err := LoadBotConfig(dir, "mcpbot")
	require.NoError(t, err)
	assert.Equal(t, session, loaded)
}

func TestRoomInfoRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	room := &RoomInfo{RoomID: "!room:localhost", RoomAlias: "#mcp-test:localhost", BotUserID: "@mcpbot:localhost"}

	path, err := SaveRoomInfo(dir, room)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, RoomInfoFile), path)

	loaded, err := LoadRoomInfo(dir)
	require.NoError(t, err)
	assert.Equal(t, room, loaded)
}

func TestLoadRoomInfoErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRoomInfo(dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, RoomInfoFile), []byte(`{"room_alias":"#x:y"}`), 0600))
	_, err = LoadRoomInfo(dir)
	require.ErrorContains(t, err, "room_id is empty")

	require.NoError(t, os.WriteFile(filepath.Join(dir, RoomInfoFile), []byte(`not json`), 0600))
	_, err = LoadRoomInfo(dir)
	require.ErrorContains(t, err, "parsing")
}
