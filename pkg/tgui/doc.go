// Package tgui holds small Telegram UI helpers: an inline keyboard builder
// and callback-data formatting.
package tgui
