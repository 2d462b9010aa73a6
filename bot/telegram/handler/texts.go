package handler

import "strings"

var mdV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(",
	"\\(", ")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>",
	"#", "\\#", "+", "\\+", "-", "\\-", "=", "\\=", "|",
	"\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

var (
	helpText = "Welcome to TubeBot\\-Go\\!\n" +
		"Send me a song name and pick one of the results, I will send you a tagged audio file\\.\n\n" +
		"Usage:\n" +
		"`/search` \\<keywords\\> \\- search for a track\n" +
		"`/settings` \\- choose the download quality\n" +
		"`/status` \\- cache and quota statistics\n" +
		"`/help` \\- show this message\n\n" +
		"Inline mode: type `@%s` \\<keywords\\> in any chat\\."

	searchUsage     = "Please send a search keyword, e.g. /search imagine dragons believer"
	searchingText   = "🔍 Searching: %s..."
	searchResults   = "🎶 Results for \"%s\":"
	noResults       = "😔 Nothing found for \"%s\"."
	downloadingText = "⏬ Downloading..."
	sendingText     = "📤 Sending..."
	callbackText    = "⏳ Working on it..."
	callbackDenied  = "❌ Only the requester or a chat admin can use this button."
	callbackInvalid = "❌ This button is no longer valid."
	inlineButton    = "⏬ Download"
	inlineEmpty     = "Type a song name to search"

	rateLimitedText    = "⏳ You have reached the hourly download limit. Please try again later."
	fileNotFoundText   = "❌ File not found after download."
	unavailableText    = "❌ This track is unavailable right now."
	deliveryFailedText = "❌ Failed to send the file, please try again."
	timeoutText        = "⌛ The download took too long and was stopped."
	genericFailureText = "❌ Download failed, please try again."

	settingsText         = "⚙️ Download quality: %s\nPick a tier:"
	settingsSaved        = "✅ Quality set to %s"
	settingsFailed       = "❌ Failed to save settings, please try again later."
	settingsDenied       = "❌ These are not your settings."
	qualityLabelSelected = "✅ %s"

	statusInfo = "*📊 Status*\n" +
		"Cached tracks: %d\n" +
		"Files delivered: %d\n" +
		"Downloads running: %d\n" +
		"Tracks you cached: %d\n" +
		"[%s](tg://user?id=%d): %d of %d downloads left this hour"
	statusInfoUnlimited = "*📊 Status*\n" +
		"Cached tracks: %d\n" +
		"Files delivered: %d\n" +
		"Downloads running: %d\n" +
		"Tracks you cached: %d"

	rmcacheUsage    = "Usage: /rmcache <candidate id>"
	rmcacheDone     = "🗑 Removed %s from the cache."
	rmcacheNotFound = "%s is not cached."
	rmcacheFailed   = "❌ Failed to remove %s from the cache."
	adminOnly       = "❌ This command is for bot admins only."

	notAllowedText    = "❌ This bot is not enabled in this chat."
	whitelistUsage    = "Usage: /allow [chat id], /deny [chat id] or /allowlist"
	whitelistAdded    = "✅ Chat %d can now use the bot."
	whitelistAlready  = "Chat %d is already allowed."
	whitelistRemoved  = "🗑 Chat %d can no longer use the bot."
	whitelistMissing  = "Chat %d was not allowed."
	whitelistNotSaved = "⚠️ The change is active but could not be saved to the config file."
	whitelistEmpty    = "No chats are allowed yet."
	whitelistHeader   = "Allowed chats:"
	whitelistDisabled = "(the whitelist is off)"
)

var qualityLabels = map[string]string{
	"high":   "🎧 High",
	"medium": "🎵 Medium",
	"low":    "📻 Low",
}
