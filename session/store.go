package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or command failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no live session matches a token.
var ErrSessionNotFound = errors.New("session not found")

// ErrTokenConflict is returned by Create when the token hash is already bound
// to a session.
var ErrTokenConflict = errors.New("session token already in use")

const (
	createStatusConflict int64 = 0
	createStatusCreated  int64 = 1
)

// Shared by every script: drops index members whose session key has expired
// and returns the token hash stored at a fixed offset of an encoded session.
const luaHelpers = `
local function token_hash(data)
  if not data or #data < 66 or string.byte(data, 1) ~= 1 then
    return nil
  end
  return string.sub(data, 2, 65)
end

local function user_id(data)
  if not data or #data < 67 then
    return nil
  end
  local len = string.byte(data, 66)
  if #data < 66 + len then
    return nil
  end
  return string.sub(data, 67, 66 + len)
end

local function prune(user_key, session_prefix)
  local members = redis.call("ZRANGE", user_key, 0, -1)
  for _, id in ipairs(members) do
    if redis.call("EXISTS", session_prefix .. id) == 0 then
      redis.call("ZREM", user_key, id)
    end
  end
end
`

const createSessionScript = luaHelpers + `
local user_key = KEYS[1]
local session_key = KEYS[2]
local token_key = KEYS[3]
local session_id = ARGV[1]
local blob = ARGV[2]
local created_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])
local max_sessions = tonumber(ARGV[5])
local session_prefix = ARGV[6]
local token_prefix = ARGV[7]

if redis.call("EXISTS", token_key) == 1 then
  return {0}
end

prune(user_key, session_prefix)

local out = {1}
if max_sessions > 0 then
  while redis.call("ZCARD", user_key) >= max_sessions do
    local oldest = redis.call("ZRANGE", user_key, 0, 0)[1]
    local hash = token_hash(redis.call("GET", session_prefix .. oldest))
    if hash then
      redis.call("DEL", token_prefix .. hash)
    end
    redis.call("DEL", session_prefix .. oldest)
    redis.call("ZREM", user_key, oldest)
    out[#out + 1] = oldest
  end
end

redis.call("SET", session_key, blob, "PX", ttl_ms)
redis.call("SET", token_key, session_id, "PX", ttl_ms)
redis.call("ZADD", user_key, created_ms, session_id)
local current_ttl = redis.call("PTTL", user_key)
if current_ttl < ttl_ms then
  redis.call("PEXPIRE", user_key, ttl_ms)
end
return out
`

var createSessionLua = redis.NewScript(createSessionScript)

const deleteByTokenScript = luaHelpers + `
local token_key = KEYS[1]
local session_prefix = ARGV[1]
local user_prefix = ARGV[2]

local session_id = redis.call("GET", token_key)
if not session_id then
  return {0}
end
redis.call("DEL", token_key)

local session_key = session_prefix .. session_id
local data = redis.call("GET", session_key)
if not data then
  return {0}
end
redis.call("DEL", session_key)

local uid = user_id(data)
if uid then
  redis.call("ZREM", user_prefix .. uid, session_id)
  return {1, session_id, uid}
end
return {1, session_id, ""}
`

var deleteByTokenLua = redis.NewScript(deleteByTokenScript)

const deleteAllScript = luaHelpers + `
local user_key = KEYS[1]
local session_prefix = ARGV[1]
local token_prefix = ARGV[2]

local removed = 0
local members = redis.call("ZRANGE", user_key, 0, -1)
for _, id in ipairs(members) do
  local session_key = session_prefix .. id
  local hash = token_hash(redis.call("GET", session_key))
  if hash then
    redis.call("DEL", token_prefix .. hash)
  end
  removed = removed + redis.call("DEL", session_key)
end
redis.call("DEL", user_key)
return removed
`

var deleteAllLua = redis.NewScript(deleteAllScript)

const countSessionsScript = luaHelpers + `
prune(KEYS[1], ARGV[1])
return redis.call("ZCARD", KEYS[1])
`

var countSessionsLua = redis.NewScript(countSessionsScript)

// Store is a Redis-backed session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sg"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) sessionPrefix() string { return s.prefix + ":s:" }
func (s *Store) tokenPrefix() string   { return s.prefix + ":t:" }
func (s *Store) userPrefix() string    { return s.prefix + ":u:" }

func (s *Store) key(sessionID string) string  { return s.sessionPrefix() + sessionID }
func (s *Store) tokenKey(hash string) string  { return s.tokenPrefix() + hash }
func (s *Store) userKey(userID string) string { return s.userPrefix() + userID }

// Create persists sess for ttl. When the user already holds maxSessions live
// sessions, the oldest are evicted first so that the user ends with at most
// maxSessions sessions. maxSessions <= 0 disables the cap.
//
// The whole sequence runs as one Lua script, so concurrent logins by the same
// user cannot overshoot the cap. Returns the IDs of evicted sessions, oldest first.
//
//	Performance: 1 script call, O(n) in the user's session count.
func (s *Store) Create(ctx context.Context, sess *Session, ttl time.Duration, maxSessions int) ([]string, error) {
	if ttl <= 0 {
		return nil, errors.New("session ttl must be > 0")
	}
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	res, err := createSessionLua.Run(ctx, s.redis,
		[]string{s.userKey(sess.UserID), s.key(sess.SessionID), s.tokenKey(sess.TokenHash)},
		sess.SessionID,
		data,
		strconv.FormatInt(sess.CreatedAt, 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
		strconv.Itoa(maxSessions),
		s.sessionPrefix(),
		s.tokenPrefix(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty create response", ErrRedisUnavailable)
	}

	status, _ := res[0].(int64)
	if status == createStatusConflict {
		return nil, ErrTokenConflict
	}
	if status != createStatusCreated {
		return nil, fmt.Errorf("%w: unexpected create status %v", ErrRedisUnavailable, res[0])
	}

	evicted := make([]string, 0, len(res)-1)
	for _, v := range res[1:] {
		if id, ok := v.(string); ok {
			evicted = append(evicted, id)
		}
	}
	return evicted, nil
}

// GetByToken returns the live session bound to tokenHash.
//
//	Performance: 2 Redis GETs.
func (s *Store) GetByToken(ctx context.Context, tokenHash string) (*Session, error) {
	sessionID, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TokenHash != tokenHash {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Get returns a live session by ID.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	if sess.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// DeleteByToken removes the session bound to tokenHash and returns its owner.
// Returns ErrSessionNotFound if no session matches.
func (s *Store) DeleteByToken(ctx context.Context, tokenHash string) (*Session, error) {
	res, err := deleteByTokenLua.Run(ctx, s.redis,
		[]string{s.tokenKey(tokenHash)},
		s.sessionPrefix(),
		s.userPrefix(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty delete response", ErrRedisUnavailable)
	}
	if status, _ := res[0].(int64); status == 0 || len(res) < 3 {
		return nil, ErrSessionNotFound
	}

	sessionID, _ := res[1].(string)
	userID, _ := res[2].(string)
	return &Session{SessionID: sessionID, UserID: userID, TokenHash: tokenHash}, nil
}

// DeleteAllForUser removes every session of userID and returns how many were live.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := deleteAllLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.sessionPrefix(),
		s.tokenPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// CountForUser returns the number of live sessions of userID. Expired index
// members are pruned first.
func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	n, err := countSessionsLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.sessionPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// ListForUser returns the live sessions of userID, oldest first. It does not
// mutate Redis state.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.getMany(ctx, ids)
}

func (s *Store) getMany(ctx context.Context, sessionIDs []string) ([]*Session, error) {
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(sessionIDs))
	now := time.Now()
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.SessionID = sessionIDs[i]
		if sess.Expired(now) {
			continue
		}
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
