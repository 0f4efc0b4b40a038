package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/udisondev/survivalskills/internal/model"
)

// Command is a command handler. args includes the command name at [0].
// The returned string is the reply shown to the caller.
type Command interface {
	Handle(ctx context.Context, caller model.PlayerID, args []string) (string, error)
	// Names returns all registered names (without prefix).
	Names() []string
	// Usage is shown by help and on argument errors, prefix included.
	Usage() string
}

// AdminCommand is a Command that requires an access level.
type AdminCommand interface {
	Command
	RequiredAccessLevel() int32
}

// Handler dispatches admin (//) and user (/) commands.
// Commands are registered once at startup, then read-only.
type Handler struct {
	access AccessResolver

	mu        sync.RWMutex
	adminCmds map[string]AdminCommand // lowercase name → command
	userCmds  map[string]Command
}

// NewHandler creates a handler. nil access treats everyone as level 0.
func NewHandler(access AccessResolver) *Handler {
	if access == nil {
		access = StaticAccess{}
	}
	return &Handler{
		access:    access,
		adminCmds: make(map[string]AdminCommand, 16),
		userCmds:  make(map[string]Command, 8),
	}
}

// RegisterAdmin registers an admin command under all its names.
func (h *Handler) RegisterAdmin(cmd AdminCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range cmd.Names() {
		h.adminCmds[strings.ToLower(name)] = cmd
	}
}

// RegisterUser registers a user command under all its names.
func (h *Handler) RegisterUser(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range cmd.Names() {
		h.userCmds[strings.ToLower(name)] = cmd
	}
}

// Dispatch runs a chat line. ok is false when the line is not a known command
// (it should then be treated as ordinary chat).
func (h *Handler) Dispatch(ctx context.Context, caller model.PlayerID, line string) (reply string, ok bool) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "//"):
		return h.HandleAdminCommand(ctx, caller, line[2:])
	case strings.HasPrefix(line, "/"):
		return h.HandleUserCommand(ctx, caller, line[1:])
	default:
		return "", false
	}
}

// HandleAdminCommand runs text (without the // prefix).
func (h *Handler) HandleAdminCommand(ctx context.Context, caller model.PlayerID, text string) (string, bool) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", false
	}
	name := strings.ToLower(parts[0])

	h.mu.RLock()
	cmd, ok := h.adminCmds[name]
	h.mu.RUnlock()
	if !ok {
		return "Unknown command: //" + name, false
	}

	level := h.access.AccessLevel(caller)
	al := GetAccessLevel(level)
	if al == nil || !al.CanUseAdminCommands {
		slog.Warn("unauthorized admin command attempt",
			"player", caller,
			"command", name,
			"accessLevel", level)
		return "Unknown command: //" + name, false
	}

	if level < cmd.RequiredAccessLevel() {
		slog.Warn("admin command access denied",
			"player", caller,
			"command", name,
			"required", cmd.RequiredAccessLevel(),
			"actual", level)
		return fmt.Sprintf("Insufficient access level for //%s (need %d, have %d)",
			name, cmd.RequiredAccessLevel(), level), true
	}

	slog.Info("admin command", "player", caller, "command", text)

	reply, err := cmd.Handle(ctx, caller, parts)
	if err != nil {
		slog.Error("admin command failed",
			"player", caller,
			"command", text,
			"error", err)
		return "Command error: " + err.Error(), true
	}
	return reply, true
}

// HandleUserCommand runs text (without the / prefix).
func (h *Handler) HandleUserCommand(ctx context.Context, caller model.PlayerID, text string) (string, bool) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", false
	}
	name := strings.ToLower(parts[0])

	h.mu.RLock()
	cmd, ok := h.userCmds[name]
	h.mu.RUnlock()
	if !ok {
		return "", false
	}

	reply, err := cmd.Handle(ctx, caller, parts)
	if err != nil {
		slog.Debug("user command rejected",
			"player", caller,
			"command", text,
			"error", err)
		return err.Error(), true
	}
	return reply, true
}

// Help lists the commands the caller may use, sorted.
func (h *Handler) Help(caller model.PlayerID) []string {
	level := h.access.AccessLevel(caller)
	al := GetAccessLevel(level)

	h.mu.RLock()
	defer h.mu.RUnlock()

	// aliases share one command, so dedupe by usage line
	seen := make(map[string]bool, len(h.userCmds)+len(h.adminCmds))
	var out []string
	for _, cmd := range h.userCmds {
		if u := cmd.Usage(); !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	if al != nil && al.CanUseAdminCommands {
		for _, cmd := range h.adminCmds {
			if u := cmd.Usage(); !seen[u] && level >= cmd.RequiredAccessLevel() {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	sort.Strings(out)
	return out
}

// AdminCommandCount returns the number of registered admin names.
func (h *Handler) AdminCommandCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.adminCmds)
}

// UserCommandCount returns the number of registered user names.
func (h *Handler) UserCommandCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userCmds)
}

func usageError(cmd Command) error {
	return fmt.Errorf("usage: %s", cmd.Usage())
}
