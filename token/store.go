package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by FindByHash when no record exists for the hash.
var ErrNotFound = errors.New("refresh token not found")

// ErrUnavailable wraps Redis I/O failures so callers can separate storage
// outages from authorization decisions.
var ErrUnavailable = errors.New("redis unavailable")

// RotateStatus is the outcome of the atomic rotation script.
type RotateStatus int

const (
	// RotateNotFound means no record exists for the presented hash.
	RotateNotFound RotateStatus = iota
	// RotateExpired means the record exists, was never revoked, but its
	// lifetime elapsed. Expiry alone does not cascade.
	RotateExpired
	// RotateReplayed means the record was already revoked when presented
	// again: the theft signal. The script has already revoked the whole
	// family by the time this status is returned.
	RotateReplayed
	// RotateRotated means the record was live and has been atomically
	// revoked with its successor created.
	RotateRotated
)

// RotateResult carries the script outcome plus the identifiers the engine
// needs for auditing and follow-up revocation.
type RotateResult struct {
	Status       RotateStatus
	UserID       string
	FamilyID     string
	RevokedCount int
}

const (
	rotateCodeNotFound int64 = 0
	rotateCodeExpired  int64 = 1
	rotateCodeReplayed int64 = 2
	rotateCodeRotated  int64 = 3
)

// rotateScript is the heart of the rotation protocol. It runs as a single
// atomic unit, so of two concurrent rotations on the same record exactly one
// observes rev=="0" and wins; the loser sees the winner's revocation and
// takes the replay branch. The replay branch revokes the entire family in
// the same execution, so the theft response cannot be lost between detection
// and reaction.
const rotateScript = `
local rec = KEYS[1]
local fields = redis.call("HMGET", rec, "uid", "fam", "rev", "exp")
local uid = fields[1]
local fam = fields[2]
local rev = fields[3]
local exp = fields[4]
if not uid then
  return {0}
end

local fam_key = ARGV[2] .. fam
local usr_key = ARGV[3] .. uid
local now = tonumber(ARGV[4])

if rev == "1" then
  local revoked = 0
  for _, h in ipairs(redis.call("SMEMBERS", fam_key)) do
    local k = ARGV[1] .. h
    if redis.call("HGET", k, "rev") == "0" then
      redis.call("HSET", k, "rev", "1", "rat", ARGV[4])
      revoked = revoked + 1
    end
  end
  return {2, uid, fam, revoked}
end

if tonumber(exp) <= now then
  return {1, uid, fam}
end

redis.call("HSET", rec, "rev", "1", "rat", ARGV[4])

local succ = ARGV[1] .. ARGV[5]
redis.call("HSET", succ,
  "id", ARGV[6],
  "uid", uid,
  "fam", fam,
  "rev", "0",
  "iat", ARGV[4],
  "exp", ARGV[7],
  "rat", "0",
  "ua", ARGV[8],
  "ip", ARGV[9])
redis.call("EXPIREAT", succ, tonumber(ARGV[7]))
redis.call("SADD", fam_key, ARGV[5])
redis.call("SADD", usr_key, ARGV[5])
redis.call("EXPIREAT", fam_key, tonumber(ARGV[7]))
redis.call("EXPIREAT", usr_key, tonumber(ARGV[7]))

return {3, uid, fam}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeOneScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
if not uid then
  return {0, ""}
end
if redis.call("HGET", KEYS[1], "rev") == "1" then
  return {0, uid}
end
redis.call("HSET", KEYS[1], "rev", "1", "rat", ARGV[1])
return {1, uid}
`

var revokeOneLua = redis.NewScript(revokeOneScript)

const revokeSetScript = `
local revoked = 0
for _, h in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local k = ARGV[1] .. h
  if redis.call("HGET", k, "rev") == "0" then
    redis.call("HSET", k, "rev", "1", "rat", ARGV[2])
    revoked = revoked + 1
  end
end
return revoked
`

var revokeSetLua = redis.NewScript(revokeSetScript)

// Store is the durable refresh-token interface, keyed by token-secret hash.
// Records are Redis hashes; per-family and per-user index sets drive the
// bulk revocation paths. Every mutation is a single Lua script or MULTI
// pipeline, so concurrent callers never observe intermediate states.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a refresh-token [Store] backed by the given Redis client.
// prefix namespaces every key.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  rdb,
		prefix: prefix,
	}
}

func (s *Store) recordKey(hash string) string {
	return s.prefix + ":rt:" + hash
}

func (s *Store) recordPrefix() string {
	return s.prefix + ":rt:"
}

func (s *Store) familyKey(familyID string) string {
	return s.prefix + ":fam:" + familyID
}

func (s *Store) familyPrefix() string {
	return s.prefix + ":fam:"
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":usr:" + userID
}

func (s *Store) userPrefix() string {
	return s.prefix + ":usr:"
}

// Create persists the first record of a new family (login path). Successor
// records are created inside Rotate, never here. The record key expires at
// ExpiresAt; revocation later on never shortens that, which keeps revoked
// rows readable for replay detection until their natural expiry.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	recordKey := s.recordKey(rec.Hash)
	familyKey := s.familyKey(rec.FamilyID)
	userKey := s.userKey(rec.UserID)
	expiresAt := rec.ExpiresAt

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey,
			"id", rec.ID,
			"uid", rec.UserID,
			"fam", rec.FamilyID,
			"rev", "0",
			"iat", strconv.FormatInt(rec.IssuedAt.Unix(), 10),
			"exp", strconv.FormatInt(expiresAt.Unix(), 10),
			"rat", "0",
			"ua", rec.UserAgent,
			"ip", rec.IPAddress,
		)
		pipe.ExpireAt(ctx, recordKey, expiresAt)
		pipe.SAdd(ctx, familyKey, rec.Hash)
		pipe.ExpireAt(ctx, familyKey, expiresAt)
		pipe.SAdd(ctx, userKey, rec.Hash)
		pipe.ExpireAt(ctx, userKey, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// FindByHash retrieves a record by token-secret hash. Returns [ErrNotFound]
// for misses; the caller must not tell its own callers which case occurred.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(hash)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeRecord(hash, fields)
}

// Rotate executes the atomic find-revoke-create-successor step. successor
// must carry ID, Hash, ExpiresAt, and client metadata; UserID and FamilyID
// are inherited from the presented record inside the script and reported
// back in the result.
//
//	Performance: 1 Lua EVALSHA.
//	Security: the compare-and-swap on the revoked flag is what guarantees a
//	single successor per token under concurrency.
func (s *Store) Rotate(ctx context.Context, providedHash string, successor *Record, now time.Time) (RotateResult, error) {
	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(providedHash)},
		s.recordPrefix(),
		s.familyPrefix(),
		s.userPrefix(),
		strconv.FormatInt(now.Unix(), 10),
		successor.Hash,
		successor.ID,
		strconv.FormatInt(successor.ExpiresAt.Unix(), 10),
		successor.UserAgent,
		successor.IPAddress,
	).Result()
	if err != nil {
		return RotateResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return RotateResult{}, fmt.Errorf("%w: invalid rotate script response", ErrUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return RotateResult{}, fmt.Errorf("%w: invalid rotate script status", ErrUnavailable)
	}

	out := RotateResult{}
	if len(parts) > 1 {
		out.UserID, _ = parts[1].(string)
	}
	if len(parts) > 2 {
		out.FamilyID, _ = parts[2].(string)
	}

	switch code {
	case rotateCodeNotFound:
		out.Status = RotateNotFound
	case rotateCodeExpired:
		out.Status = RotateExpired
	case rotateCodeReplayed:
		out.Status = RotateReplayed
		if len(parts) > 3 {
			if n, ok := parts[3].(int64); ok {
				out.RevokedCount = int(n)
			}
		}
	case rotateCodeRotated:
		out.Status = RotateRotated
	default:
		return RotateResult{}, fmt.Errorf("%w: unknown rotate script status", ErrUnavailable)
	}

	return out, nil
}

// Revoke marks a single record revoked (single-device logout). Idempotent:
// revoking a missing or already-revoked record reports revoked=false with a
// nil error.
func (s *Store) Revoke(ctx context.Context, hash string, now time.Time) (bool, string, error) {
	result, err := revokeOneLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(hash)},
		strconv.FormatInt(now.Unix(), 10),
	).Result()
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) < 2 {
		return false, "", fmt.Errorf("%w: invalid revoke script response", ErrUnavailable)
	}

	code, _ := parts[0].(int64)
	userID, _ := parts[1].(string)
	return code == 1, userID, nil
}

// RevokeFamily revokes every live record sharing a family: the theft
// cascade, also used when the account goes inactive mid-chain. Idempotent.
func (s *Store) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int, error) {
	return s.revokeSet(ctx, s.familyKey(familyID), now)
}

// RevokeAllForUser revokes every live record across all the user's families:
// logout-all, password change, account deactivation. Idempotent.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	return s.revokeSet(ctx, s.userKey(userID), now)
}

func (s *Store) revokeSet(ctx context.Context, setKey string, now time.Time) (int, error) {
	result, err := revokeSetLua.Run(
		ctx,
		s.redis,
		[]string{setKey},
		s.recordPrefix(),
		strconv.FormatInt(now.Unix(), 10),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	revoked, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid revoke script response", ErrUnavailable)
	}

	return int(revoked), nil
}

// CountActiveInFamily reports how many unrevoked, unexpired records a family
// currently holds. Outside the transient window inside a replay cascade this
// is always 0 or 1; it exists for invariant checks and operational tooling,
// not request paths.
func (s *Store) CountActiveInFamily(ctx context.Context, familyID string, now time.Time) (int, error) {
	hashes, err := s.redis.SMembers(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.SliceCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.HMGet(ctx, s.recordKey(h), "rev", "exp")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	active := 0
	nowUnix := now.Unix()
	for _, cmd := range cmds {
		vals, cmdErr := cmd.Result()
		if cmdErr != nil || len(vals) != 2 {
			continue
		}
		rev, _ := vals[0].(string)
		expStr, _ := vals[1].(string)
		if rev != "0" {
			continue
		}
		exp, parseErr := strconv.ParseInt(expStr, 10, 64)
		if parseErr != nil || exp <= nowUnix {
			continue
		}
		active++
	}

	return active, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecord(hash string, fields map[string]string) (*Record, error) {
	iat, err := strconv.ParseInt(fields["iat"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt record iat", ErrUnavailable)
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt record exp", ErrUnavailable)
	}

	rec := &Record{
		ID:        fields["id"],
		UserID:    fields["uid"],
		FamilyID:  fields["fam"],
		Hash:      hash,
		Revoked:   fields["rev"] == "1",
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(exp, 0),
		UserAgent: fields["ua"],
		IPAddress: fields["ip"],
	}

	if rat, err := strconv.ParseInt(fields["rat"], 10, 64); err == nil && rat > 0 {
		rec.RevokedAt = time.Unix(rat, 0)
	}

	return rec, nil
}
