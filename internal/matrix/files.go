package matrix

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thellimist/mcprobe/internal/nameutil"
)

// RoomInfoFile is the name of the saved room info file.
const RoomInfoFile = "test-room-info.json"

// BotConfigFilename returns bot_<username>_config.json for a bot local part.
func BotConfigFilename(username string) string {
	return fmt.Sprintf("bot_%s_config.json", nameutil.Slugify(username))
}

// SaveBotConfig writes the bot session to dir and returns the file path.
func SaveBotConfig(dir, username string, s *Session) (string, error) {
	path := filepath.Join(dir, BotConfigFilename(username))
	return path, writeJSON(path, s)
}

// LoadBotConfig reads a session saved by SaveBotConfig.
func LoadBotConfig(dir, username string) (*Session, error) {
	var s Session
	if err := readJSON(filepath.Join(dir, BotConfigFilename(username)), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveRoomInfo writes info to dir/test-room-info.json and returns the path.
func SaveRoomInfo(dir string, info *RoomInfo) (string, error) {
	path := filepath.Join(dir, RoomInfoFile)
	return path, writeJSON(path, info)
}

// LoadRoomInfo reads dir/test-room-info.json.
func LoadRoomInfo(dir string) (*RoomInfo, error) {
	var info RoomInfo
	if err := readJSON(filepath.Join(dir, RoomInfoFile), &info); err != nil {
		return nil, err
	}
	if info.RoomID == "" {
		return nil, fmt.Errorf("%s: room_id is empty", RoomInfoFile)
	}
	return &info, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
