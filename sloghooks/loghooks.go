// Package sloghooks logs cache events through log/slog, with per-event
// sampling and key redaction so hot key-spaces do not flood the logs.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/loadcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	DecodeFailEvery uint64
	FetchFailEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	decodeFailCtr atomic.Uint64
	fetchFailCtr  atomic.Uint64
}

var _ loadcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BackfillFailed(keySpace string, entries int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("loadcache.backfill_failed",
		"key_space", keySpace,
		"entries", entries,
		"err", err)
}

func (h *Hooks) DecodeFailed(keySpace, storageKey string, err error) {
	if h.l == nil || !sample(h.opts.DecodeFailEvery, &h.decodeFailCtr) {
		return
	}
	h.l.Warn("loadcache.decode_failed",
		"key_space", keySpace,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) FetchFailed(keySpace string, err error) {
	if h.l == nil || !sample(h.opts.FetchFailEvery, &h.fetchFailCtr) {
		return
	}
	h.l.Warn("loadcache.fetch_failed",
		"key_space", keySpace,
		"err", err)
}

func (h *Hooks) InvalidationReceived(keySpace, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("loadcache.invalidation_received",
		"key_space", keySpace,
		"key", h.redact(key))
}
