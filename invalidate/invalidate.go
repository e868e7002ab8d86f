// Package invalidate fans out cache invalidations across processes over a
// Redis pub/sub channel. A facade that clears a key publishes the key's
// canonical form; every other process subscribed to the same channel drops
// its local entry, keeping process-local caches from serving values the
// store no longer holds.
//
// Delivery is best-effort: pub/sub has no replay, so a process that was
// down during a publish converges through store-side expiry instead.
package invalidate

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultChannel = "loadcache:invalidations"

var ErrNilClient = errors.New("invalidate: nil client")

type message struct {
	KeySpace string `json:"ks"`
	Key      string `json:"key"`
}

// Bus publishes and receives invalidation messages. One Bus may serve any
// number of key-spaces; listeners filter on their own.
type Bus struct {
	rdb     goredis.UniversalClient
	channel string
}

// NewBus wraps an existing client. channel == "" selects DefaultChannel.
// The Bus never closes the client; ownership stays with the caller.
func NewBus(client goredis.UniversalClient, channel string) (*Bus, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{rdb: client, channel: channel}, nil
}

// Publish announces that key (canonical form) was cleared in keySpace.
func (b *Bus) Publish(ctx context.Context, keySpace, key string) error {
	payload, err := json.Marshal(message{KeySpace: keySpace, Key: key})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Listen blocks, delivering the canonical key of every invalidation
// published for keySpace to fn, until ctx is done. Malformed or foreign
// messages are skipped. fn runs on the subscription goroutine and must not
// block.
func (b *Bus) Listen(ctx context.Context, keySpace string, fn func(key string)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// fail fast if the subscription could not be established
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			if msg.KeySpace != keySpace {
				continue
			}
			fn(msg.Key)
		}
	}
}
