package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mlaurent/parlay-tracker/internal/tracker-service/engine"
)

// ErrSyncFailed sinaliza falha de escrita/leitura no espelho remoto.
// O estado em memória é a autoridade: uma falha aqui nunca desfaz a
// mutação local, só é reportada ao chamador.
var ErrSyncFailed = errors.New("sync failed")

// betsDocument é o documento da chave "bets": lista de trabalho + mise
// padrão, mesmo formato do armazenamento original.
type betsDocument struct {
	Bets []engine.Bet `json:"bets"`
	Mise float64      `json:"mise"`
}

// RedisStore espelha o estado do tracker em três chaves lógicas:
// {prefix}:bets, {prefix}:currentSession e {prefix}:sessions.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tracker"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) keyBets() string     { return s.prefix + ":bets" }
func (s *RedisStore) keyCurrent() string  { return s.prefix + ":currentSession" }
func (s *RedisStore) keySessions() string { return s.prefix + ":sessions" }

// SaveBets grava a lista de trabalho e a mise padrão.
func (s *RedisStore) SaveBets(ctx context.Context, bets []engine.Bet, mise float64) error {
	return s.set(ctx, s.keyBets(), betsDocument{Bets: bets, Mise: mise})
}

// SaveCurrentSession grava a sessão ativa; nil apaga a chave (sem sessão).
func (s *RedisStore) SaveCurrentSession(ctx context.Context, sess *engine.Session) error {
	if sess == nil {
		if err := s.rdb.Del(ctx, s.keyCurrent()).Err(); err != nil {
			return fmt.Errorf("%w: del %s: %v", ErrSyncFailed, s.keyCurrent(), err)
		}
		return nil
	}
	return s.set(ctx, s.keyCurrent(), sess)
}

// SaveSessions grava o histórico de sessões fechadas.
func (s *RedisStore) SaveSessions(ctx context.Context, sessions []engine.Session) error {
	return s.set(ctx, s.keySessions(), sessions)
}

// SaveSnapshot grava as três chaves após uma mutação. Retorna o primeiro
// erro, mas tenta as três (o espelho é eventualmente consistente).
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	var first error
	if err := s.SaveBets(ctx, snap.Bets, snap.DefaultStake); err != nil {
		first = err
	}
	if err := s.SaveCurrentSession(ctx, snap.CurrentSession); err != nil && first == nil {
		first = err
	}
	if err := s.SaveSessions(ctx, snap.Sessions); err != nil && first == nil {
		first = err
	}
	return first
}

// Load lê as três chaves. Chave ausente vira valor zero, não erro.
func (s *RedisStore) Load(ctx context.Context) (bets []engine.Bet, mise float64, current *engine.Session, sessions []engine.Session, err error) {
	var doc betsDocument
	ok, err := s.get(ctx, s.keyBets(), &doc)
	if err != nil {
		return nil, 0, nil, nil, err
	}
	if ok {
		bets = doc.Bets
		mise = doc.Mise
	}

	var sess engine.Session
	ok, err = s.get(ctx, s.keyCurrent(), &sess)
	if err != nil {
		return nil, 0, nil, nil, err
	}
	if ok {
		current = &sess
	}

	if _, err = s.get(ctx, s.keySessions(), &sessions); err != nil {
		return nil, 0, nil, nil, err
	}

	return bets, mise, current, sessions, nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrSyncFailed, key, err)
	}
	if err := s.rdb.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrSyncFailed, key, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string, out any) (bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %v", ErrSyncFailed, key, err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("%w: unmarshal %s: %v", ErrSyncFailed, key, err)
	}
	return true, nil
}
