package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshHashMismatch is returned when a presented refresh secret does not
// match the grant. The grant has already been revoked when this is returned.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrGrantNotFound is returned when the refresh grant does not exist.
var ErrGrantNotFound = errors.New("refresh grant not found")

// ErrGrantExpired is returned when the refresh grant is past its expiry.
var ErrGrantExpired = errors.New("refresh grant expired")

// ErrGrantCorrupt is returned when the stored grant blob cannot be parsed.
var ErrGrantCorrupt = errors.New("refresh grant corrupt")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

const deleteGrantScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteGrantLua = redis.NewScript(deleteGrantScript)

const rotateRefreshScript = `
local function read_be64(s, i)
  local v = 0
  for j = i, i + 7 do
    local b = string.byte(s, j)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local grant_key = KEYS[1]
local grant_id = ARGV[1]
local subject_prefix = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local data = redis.call("GET", grant_key)
if not data then
  return {0}
end

-- version(1) hash(32) expiresAt(8) createdAt(8) subjectLen(1) subject
if #data < 50 or string.byte(data, 1) ~= 1 then
  return {4}
end

local expires_at = read_be64(data, 34)
local subject_len = string.byte(data, 50)
if not expires_at or #data < 50 + subject_len then
  return {4}
end
local subject_key = subject_prefix .. string.sub(data, 51, 50 + subject_len)

if expires_at <= now_unix then
  redis.call("DEL", grant_key)
  redis.call("SREM", subject_key, grant_id)
  return {1}
end

if string.sub(data, 2, 33) ~= provided_hash then
  redis.call("DEL", grant_key)
  redis.call("SREM", subject_key, grant_id)
  return {2}
end

local ttl = redis.call("PTTL", grant_key)
if ttl <= 0 then
  redis.call("DEL", grant_key)
  redis.call("SREM", subject_key, grant_id)
  return {1}
end

local updated = string.sub(data, 1, 1) .. next_hash .. string.sub(data, 34)
redis.call("SET", grant_key, updated, "PX", ttl)

return {3, updated}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed refresh grant store with atomic hash rotation and a
// per-subject index used for revoking every grant of an account.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a grant [Store] backed by the given Redis client. prefix
// sets the key namespace for grants and the subject index.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gig"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) key(grantID string) string {
	return s.prefix + ":" + grantID
}

func (s *Store) subjectPrefix() string {
	return s.prefix + "s:"
}

func (s *Store) subjectKey(subject string) string {
	return s.subjectPrefix() + subject
}

// Save persists a [Grant] with the given TTL and adds it to the subject index.
//
//	Performance: 1 MULTI with SET + SADD + EXPIRE.
func (s *Store) Save(ctx context.Context, g *Grant, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("grant ttl must be > 0")
	}
	data, err := Encode(g)
	if err != nil {
		return err
	}

	subjectKey := s.subjectKey(g.Subject)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(g.GrantID), data, ttl)
		pipe.SAdd(ctx, subjectKey, g.GrantID)
		pipe.Expire(ctx, subjectKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get fetches a grant without mutating it. Missing and expired grants both
// report [ErrGrantNotFound].
func (s *Store) Get(ctx context.Context, grantID string) (*Grant, error) {
	data, err := s.redis.Get(ctx, s.key(grantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	g, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrGrantCorrupt, err)
	}
	g.GrantID = grantID
	if s.now().Unix() >= g.ExpiresAt {
		return nil, ErrGrantNotFound
	}

	return g, nil
}

// Delete removes a grant and its index entry. Deleting a missing grant is not
// an error.
func (s *Store) Delete(ctx context.Context, grantID string) error {
	g, err := s.Get(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return nil
		}
		if errors.Is(err, ErrGrantCorrupt) {
			if delErr := s.redis.Del(ctx, s.key(grantID)).Err(); delErr != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
			}
			return nil
		}
		return err
	}

	_, err = deleteGrantLua.Run(ctx, s.redis, []string{s.key(grantID), s.subjectKey(g.Subject)}, grantID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForSubject revokes every grant indexed for subject.
//
// The index is read and then deleted in a second round trip, so a grant saved
// in between survives. Callers that need a hard cut also rotate the account
// security stamp, which the engine checks on every refresh.
func (s *Store) DeleteAllForSubject(ctx context.Context, subject string) error {
	subjectKey := s.subjectKey(subject)

	grantIDs, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(grantIDs)+1)
	for _, id := range grantIDs {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, subjectKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveGrantIDs returns the grant ids indexed for subject. Entries may
// outlive their grant until the next rotation or revoke touches them.
func (s *Store) ActiveGrantIDs(ctx context.Context, subject string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// RotateRefreshHash atomically replaces the refresh hash of a grant when
// providedHash matches the stored one. A mismatch deletes the grant and
// returns [ErrRefreshHashMismatch].
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: two callers presenting the same secret cannot both succeed.
func (s *Store) RotateRefreshHash(ctx context.Context, grantID string, providedHash, nextHash [32]byte) (*Grant, error) {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(grantID)},
		grantID,
		s.subjectPrefix(),
		providedHash[:],
		nextHash[:],
		s.now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrGrantNotFound
	case rotateStatusExpired:
		return nil, errors.Join(ErrGrantNotFound, ErrGrantExpired)
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated grant payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated grant payload", ErrRedisUnavailable)
		}

		g, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrGrantCorrupt, decErr)
		}
		g.GrantID = grantID
		return g, nil
	case rotateStatusInvalidBlob:
		return nil, ErrGrantCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}
