package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	purposeRecordVersionV1 = 1
	maxPurposeFieldLen     = 65535
)

var (
	ErrPurposeNotFound         = errors.New("purpose record not found")
	ErrPurposeKindMismatch     = errors.New("purpose kind mismatch")
	ErrPurposeSecretMismatch   = errors.New("purpose secret mismatch")
	ErrPurposeRedisUnavailable = errors.New("purpose redis unavailable")
)

// consumePurposeLua atomically performs GET→validate→DEL on a purpose record.
// Every outcome that reads a record deletes it, so a record is consumed at
// most once and a wrong-kind or wrong-secret presentation burns it.
//
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = expected kind (byte)
// ARGV[3] = current unix timestamp
//
// Layout: version(1) kind(1) expiresAt(8 big-endian) hash(32) ...
var consumePurposeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end
redis.call('DEL', KEYS[1])

if string.len(data) < 42 or string.byte(data, 1) ~= 1 then
  return {err='not_found'}
end

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 3, 10)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end
if tonumber(ARGV[3]) > expiresAt then
  return {err='expired'}
end

if string.byte(data, 2) ~= tonumber(ARGV[2]) then
  return {err='kind_mismatch'}
end

if string.sub(data, 11, 42) ~= ARGV[1] then
  return {err='secret_mismatch'}
end

return data
`)

// PurposeRecord is the persisted half of a single-use purpose token.
type PurposeRecord struct {
	Kind       uint8
	ExpiresAt  int64
	SecretHash [32]byte
	AccountID  string
	Extra      string
}

// PurposeStore keeps purpose records in Redis with a TTL.
type PurposeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewPurposeStore(redisClient redis.UniversalClient, prefix string) *PurposeStore {
	if prefix == "" {
		prefix = "gip"
	}
	return &PurposeStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *PurposeStore) key(recordID string) string {
	return s.prefix + ":" + recordID
}

func (s *PurposeStore) Save(ctx context.Context, recordID string, record *PurposeRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("purpose record ttl must be > 0")
	}
	if record.ExpiresAt == 0 {
		record.ExpiresAt = s.now().Add(ttl).Unix()
	}

	encoded, err := encodePurposeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(recordID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPurposeRedisUnavailable, err)
	}

	return nil
}

// Consume removes the record and returns it when the kind and secret hash
// match. Expired and missing records both report ErrPurposeNotFound.
func (s *PurposeStore) Consume(ctx context.Context, recordID string, providedHash [32]byte, expectedKind uint8) (*PurposeRecord, error) {
	result, err := consumePurposeLua.Run(ctx, s.redis,
		[]string{s.key(recordID)},
		string(providedHash[:]),
		int(expectedKind),
		s.now().Unix(),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found", "expired":
			return nil, ErrPurposeNotFound
		case "kind_mismatch":
			return nil, ErrPurposeKindMismatch
		case "secret_mismatch":
			return nil, ErrPurposeSecretMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrPurposeRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrPurposeRedisUnavailable)
	}

	record, err := decodePurposeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPurposeRedisUnavailable, err)
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return nil, ErrPurposeSecretMismatch
	}

	return record, nil
}

func encodePurposeRecord(record *PurposeRecord) ([]byte, error) {
	if len(record.AccountID) > maxPurposeFieldLen || len(record.Extra) > maxPurposeFieldLen {
		return nil, errors.New("purpose record field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(purposeRecordVersionV1)
	buf.WriteByte(record.Kind)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.SecretHash[:])

	for _, field := range []string{record.AccountID, record.Extra} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodePurposeRecord(data []byte) (*PurposeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != purposeRecordVersionV1 {
		return nil, errors.New("invalid purpose record version")
	}

	record := &PurposeRecord{}
	if record.Kind, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	fields := make([]string, 2)
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		fields[i] = string(raw)
	}
	record.AccountID, record.Extra = fields[0], fields[1]

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in purpose record")
	}

	return record, nil
}
