package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	botpkg "github.com/liuran001/TubeBot-Go/bot"
	"github.com/liuran001/TubeBot-Go/bot/telegram"
	"github.com/mymmrac/telego"
	"gopkg.in/ini.v1"
)

// WhitelistKey is the config key holding the allowed chat IDs.
const WhitelistKey = "WhitelistChatIDs"

// Whitelist gates which chats may use the bot. A user's private chat ID
// equals the user ID, so listing a user allows their private chat and their
// inline queries. Bot admins are always allowed.
type Whitelist struct {
	enabled    bool
	chatIDs    map[int64]struct{}
	adminIDs   map[int64]struct{}
	mu         sync.RWMutex
	configPath string
}

// NewWhitelist copies its inputs. configPath is where changes are persisted;
// an empty or non-INI path keeps them in memory only.
func NewWhitelist(enabled bool, chatIDs []int64, adminIDs map[int64]struct{}, configPath string) *Whitelist {
	adminIDCopy := make(map[int64]struct{}, len(adminIDs))
	for id := range adminIDs {
		adminIDCopy[id] = struct{}{}
	}
	return &Whitelist{
		enabled:    enabled,
		chatIDs:    AdminSet(chatIDs),
		adminIDs:   adminIDCopy,
		configPath: strings.TrimSpace(configPath),
	}
}

func (w *Whitelist) IsAllowed(chatID int64, userID int64) bool {
	if w == nil {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.enabled {
		return true
	}
	if _, ok := w.adminIDs[userID]; ok {
		return true
	}
	_, ok := w.chatIDs[chatID]
	return ok
}

// Add reports whether chatID was newly added.
func (w *Whitelist) Add(chatID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.chatIDs[chatID]; exists {
		return false
	}
	w.chatIDs[chatID] = struct{}{}
	return true
}

// Remove reports whether chatID was listed.
func (w *Whitelist) Remove(chatID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.chatIDs[chatID]; !exists {
		return false
	}
	delete(w.chatIDs, chatID)
	return true
}

// List returns the allowed chat IDs in ascending order.
func (w *Whitelist) List() []int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]int64, 0, len(w.chatIDs))
	for id := range w.chatIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Persist writes the current list back to the INI config file.
func (w *Whitelist) Persist() error {
	if w.configPath == "" || !strings.EqualFold(filepath.Ext(w.configPath), ".ini") {
		return nil
	}

	ids := w.List()
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, strconv.FormatInt(id, 10))
	}

	cfg, err := ini.Load(w.configPath)
	if err != nil {
		return err
	}
	cfg.Section("").Key(WhitelistKey).SetValue(strings.Join(values, ","))
	return cfg.SaveTo(w.configPath)
}

func (w *Whitelist) Enabled() bool {
	if w == nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// WhitelistHandler serves the admin commands /allow, /deny and /allowlist.
// /allow and /deny act on the current chat unless a chat ID is given.
type WhitelistHandler struct {
	Whitelist   *Whitelist
	AdminIDs    map[int64]struct{}
	BotName     string
	RateLimiter *telegram.RateLimiter
	Logger      botpkg.Logger
}

func (h *WhitelistHandler) Handle(ctx context.Context, b *telego.Bot, update *telego.Update) {
	if update == nil || update.Message == nil || h.Whitelist == nil {
		return
	}
	message := update.Message
	if message.From == nil || !isBotAdmin(h.AdminIDs, message.From.ID) {
		_, _ = replyText(ctx, h.RateLimiter, b, message, adminOnly)
		return
	}

	cmd := commandName(message.Text, h.BotName)
	if cmd == "allowlist" {
		_, _ = replyText(ctx, h.RateLimiter, b, message, h.listText())
		return
	}

	chatID := message.Chat.ID
	if arg := strings.TrimSpace(commandArguments(message.Text)); arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			_, _ = replyText(ctx, h.RateLimiter, b, message, whitelistUsage)
			return
		}
		chatID = id
	}

	var text string
	switch cmd {
	case "allow":
		text = fmt.Sprintf(whitelistAlready, chatID)
		if h.Whitelist.Add(chatID) {
			text = fmt.Sprintf(whitelistAdded, chatID)
		}
	case "deny":
		text = fmt.Sprintf(whitelistMissing, chatID)
		if h.Whitelist.Remove(chatID) {
			text = fmt.Sprintf(whitelistRemoved, chatID)
		}
	default:
		return
	}

	if err := h.Whitelist.Persist(); err != nil {
		if h.Logger != nil {
			h.Logger.Error("failed to persist whitelist", "error", err)
		}
		text += "\n" + whitelistNotSaved
	} else if h.Logger != nil {
		h.Logger.Info("whitelist changed", "command", cmd, "chat", chatID, "admin", message.From.ID)
	}
	_, _ = replyText(ctx, h.RateLimiter, b, message, text)
}

func (h *WhitelistHandler) listText() string {
	ids := h.Whitelist.List()
	if len(ids) == 0 {
		return whitelistEmpty
	}
	lines := make([]string, 0, len(ids)+1)
	header := whitelistHeader
	if !h.Whitelist.Enabled() {
		header += " " + whitelistDisabled
	}
	lines = append(lines, header)
	for _, id := range ids {
		lines = append(lines, strconv.FormatInt(id, 10))
	}
	return strings.Join(lines, "\n")
}
