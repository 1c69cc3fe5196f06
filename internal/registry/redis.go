package registry

import (
	"context"
	"fmt"

	"chat-relay/internal/database"

	"github.com/redis/go-redis/v9"
)

const (
	sessionsKey        = "user_sessions"
	roomKeyPrefix      = "room:"
	subscriptionPrefix = "subscriptions:"
)

// switchRoomScript moves a user between room sets and updates the session
// hash in one atomic step. KEYS[1] = sessions hash, ARGV[1] = user,
// ARGV[2] = new room. Returns the old room or "".
var switchRoomScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], ARGV[1])
if old and old ~= ARGV[2] then
    redis.call('SREM', 'room:' .. old, ARGV[1])
end
redis.call('SADD', 'room:' .. ARGV[2], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if old then
    return old
end
return ''
`)

// clearSessionScript removes the session and its room membership
// atomically. Returns the room the user was in, or "".
var clearSessionScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], ARGV[1])
if old then
    redis.call('SREM', 'room:' .. old, ARGV[1])
    redis.call('HDEL', KEYS[1], ARGV[1])
    return old
end
return ''
`)

type RedisRegistry struct {
	client *database.RedisClient
}

func NewRedisRegistry(client *database.RedisClient) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) CurrentRoom(ctx context.Context, user string) (string, error) {
	room, err := r.client.GetClient().HGet(ctx, sessionsKey, user).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get current room: %w", err)
	}
	return room, nil
}

func (r *RedisRegistry) SwitchRoom(ctx context.Context, user, room string) (string, error) {
	old, err := switchRoomScript.Run(ctx, r.client.GetClient(), []string{sessionsKey}, user, room).Text()
	if err != nil {
		return "", fmt.Errorf("switch room: %w", err)
	}
	return old, nil
}

func (r *RedisRegistry) ClearSession(ctx context.Context, user string) (string, error) {
	old, err := clearSessionScript.Run(ctx, r.client.GetClient(), []string{sessionsKey}, user).Text()
	if err != nil {
		return "", fmt.Errorf("clear session: %w", err)
	}
	return old, nil
}

func (r *RedisRegistry) SessionExists(ctx context.Context, user string) (bool, error) {
	return r.client.GetClient().HExists(ctx, sessionsKey, user).Result()
}

func (r *RedisRegistry) Sessions(ctx context.Context) (map[string]string, error) {
	return r.client.GetClient().HGetAll(ctx, sessionsKey).Result()
}

func (r *RedisRegistry) RoomNames(ctx context.Context) ([]string, error) {
	var names []string
	iter := r.client.GetClient().Scan(ctx, 0, roomKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val()[len(roomKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return names, nil
}

func (r *RedisRegistry) RoomMembers(ctx context.Context, room string) ([]string, error) {
	return r.client.GetClient().SMembers(ctx, roomKeyPrefix+room).Result()
}

func (r *RedisRegistry) Subscribe(ctx context.Context, publisher, subscriber string) error {
	return r.client.GetClient().SAdd(ctx, subscriptionPrefix+publisher, subscriber).Err()
}

func (r *RedisRegistry) Unsubscribe(ctx context.Context, publisher, subscriber string) error {
	return r.client.GetClient().SRem(ctx, subscriptionPrefix+publisher, subscriber).Err()
}

func (r *RedisRegistry) IsSubscriber(ctx context.Context, publisher, subscriber string) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, subscriptionPrefix+publisher, subscriber).Result()
}
