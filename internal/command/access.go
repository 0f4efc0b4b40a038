// Package command parses chat-style commands into engine calls.
//
// "/name args" are user commands available to everyone, "//name args" are
// admin commands gated by access level.
package command

import "github.com/udisondev/survivalskills/internal/model"

// AccessLevel is a named permission tier. 0 = player, 1+ = staff, 100+ = full admin.
type AccessLevel struct {
	Level               int32
	Name                string
	CanUseAdminCommands bool
}

var defaultAccessLevels = map[int32]*AccessLevel{
	0:   {Level: 0, Name: "User"},
	1:   {Level: 1, Name: "Moderator", CanUseAdminCommands: true},
	2:   {Level: 2, Name: "Game Master", CanUseAdminCommands: true},
	100: {Level: 100, Name: "Administrator", CanUseAdminCommands: true},
}

// GetAccessLevel returns the tier for a level value.
// Unknown levels inherit from the highest known level below them.
// Negative levels (banned) return nil.
func GetAccessLevel(level int32) *AccessLevel {
	if level < 0 {
		return nil
	}
	if al, ok := defaultAccessLevels[level]; ok {
		return al
	}

	var best *AccessLevel
	for _, al := range defaultAccessLevels {
		if al.Level <= level && (best == nil || al.Level > best.Level) {
			best = al
		}
	}
	return best
}

// AccessResolver maps a player to an access level.
type AccessResolver interface {
	AccessLevel(id model.PlayerID) int32
}

// StaticAccess is a fixed player → level table; absent players are level 0.
type StaticAccess map[model.PlayerID]int32

func (a StaticAccess) AccessLevel(id model.PlayerID) int32 {
	return a[id]
}

// AccessFromConfig converts the config table.
func AccessFromConfig(m map[string]int) StaticAccess {
	out := make(StaticAccess, len(m))
	for id, lvl := range m {
		out[model.PlayerID(id)] = int32(lvl)
	}
	return out
}
