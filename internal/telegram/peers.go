package telegram

import (
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// zeroChannelID offsets channel ids into their own negative range so
// users, basic groups and channels share one chat id space.
const zeroChannelID = int64(-1000000000000)

// UserChatID maps a user id into the chat id space.
func UserChatID(userID int64) int64 { return userID }

// GroupChatID maps a basic group id into the chat id space.
func GroupChatID(chatID int64) int64 { return -chatID }

// ChannelChatID maps a channel id into the chat id space.
func ChannelChatID(channelID int64) int64 { return zeroChannelID - channelID }

// PeerCache remembers input peers (with their access hashes) discovered
// from updates and dialog fetches, keyed by chat id. Outbound RPC cannot
// address a peer Telegram has not yet shown us.
type PeerCache struct {
	mu     sync.RWMutex
	byChat map[int64]tg.InputPeerClass
}

// NewPeerCache creates an empty peer cache.
func NewPeerCache() *PeerCache {
	return &PeerCache{byChat: make(map[int64]tg.InputPeerClass)}
}

// RememberUser stores the input peer for a user.
func (c *PeerCache) RememberUser(user *tg.User) {
	if user == nil {
		return
	}
	peer := user.AsInputPeer()
	if peer == nil {
		return
	}
	c.remember(UserChatID(user.ID), peer)
}

// RememberChat stores the input peer for a basic group or channel.
func (c *PeerCache) RememberChat(chat tg.ChatClass) {
	switch v := chat.(type) {
	case *tg.Chat:
		c.remember(GroupChatID(v.ID), &tg.InputPeerChat{ChatID: v.ID})
	case *tg.Channel:
		peer := v.AsInputPeer()
		if peer == nil {
			return
		}
		c.remember(ChannelChatID(v.ID), peer)
	}
}

func (c *PeerCache) remember(chatID int64, peer tg.InputPeerClass) {
	c.mu.Lock()
	c.byChat[chatID] = peer
	c.mu.Unlock()
}

// Resolve returns the input peer for a chat id.
func (c *PeerCache) Resolve(chatID int64) (tg.InputPeerClass, error) {
	c.mu.RLock()
	peer, ok := c.byChat[chatID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resolve peer: chat %d not seen yet", chatID)
	}
	return peer, nil
}

// ResolveChannel returns the input channel for a channel chat id.
func (c *PeerCache) ResolveChannel(chatID int64) (*tg.InputChannel, error) {
	peer, err := c.Resolve(chatID)
	if err != nil {
		return nil, err
	}
	ch, ok := peer.(*tg.InputPeerChannel)
	if !ok {
		return nil, fmt.Errorf("resolve channel: chat %d is not a channel", chatID)
	}
	return &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash}, nil
}

// ResolveUser returns the input user for a private chat id.
func (c *PeerCache) ResolveUser(chatID int64) (tg.InputUserClass, error) {
	peer, err := c.Resolve(chatID)
	if err != nil {
		return nil, err
	}
	u, ok := peer.(*tg.InputPeerUser)
	if !ok {
		return nil, fmt.Errorf("resolve user: chat %d is not private", chatID)
	}
	return &tg.InputUser{UserID: u.UserID, AccessHash: u.AccessHash}, nil
}
