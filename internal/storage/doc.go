// Package storage provides the persistence layer used by the bot.
//
// It owns two record types:
//   - User engagement records (stage, counters, timestamps)
//   - An append-only campaign log (one row per broadcast batch)
//
// All other packages access these records only through the Store interface;
// every Store method is atomic per call.
package storage
