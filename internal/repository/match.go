package repository

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"shogi_backend/internal/bootstrap"
	"shogi_backend/internal/domain/match"
	errs "shogi_backend/internal/errors"
)

const (
	matchesCollection = "matches"
	matchCachePrefix  = "match:"
	keyAttempts       = 20
)

type MatchRepository struct {
	cfg   *bootstrap.Config
	log   *zap.SugaredLogger
	redis *redis.Client
	mongo *mongo.Database
}

func NewMatchRepository(cfg *bootstrap.Config, log *zap.SugaredLogger, redis *redis.Client, mongo *mongo.Database) *MatchRepository {
	return &MatchRepository{
		cfg:   cfg,
		log:   log,
		redis: redis,
		mongo: mongo,
	}
}

// GenerateMatchKeys returns a fresh secret key and a five digit public code
// that no stored match uses yet.
func (m *MatchRepository) GenerateMatchKeys(ctx context.Context) (keySecret string, keyPublic string, err error) {
	for i := 0; i < keyAttempts; i++ {
		keySecret = uuid.New().String()
		keyPublic = generateHash(keySecret)

		uniq, err := m.checkPublicKeyIsUniq(ctx, keyPublic)
		if err != nil {
			return "", "", err
		}
		if uniq {
			return keySecret, keyPublic, nil
		}
	}
	return "", "", fmt.Errorf("%w: no free public code after %d attempts", errs.ErrCreateMatchFailed, keyAttempts)
}

func generateHash(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	hashBytes := h.Sum(nil)
	number := binary.BigEndian.Uint32(hashBytes[:4])
	code := number % 100000
	return fmt.Sprintf("%05d", code)
}

func (m *MatchRepository) checkPublicKeyIsUniq(ctx context.Context, keyPublic string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"key_public": keyPublic,
		"status":     bson.M{"$ne": match.StatusFinished},
	}
	err := m.mongo.Collection(matchesCollection).FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (m *MatchRepository) CreateMatch(ctx context.Context, play *match.Match) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := m.mongo.Collection(matchesCollection).InsertOne(ctx, play); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	m.log.Infof("match created with public code %s", play.KeyPublic)

	m.cache(ctx, play)
	return nil
}

// GetMatch finds a match by its secret key or by the public code of a match
// that is not finished yet.
func (m *MatchRepository) GetMatch(ctx context.Context, key string) (*match.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if cached, ok := m.cached(ctx, key); ok {
		return cached, nil
	}

	filter := bson.M{
		"$or": []bson.M{
			{"key_secret": key},
			{
				"key_public": key,
				"status":     bson.M{"$ne": match.StatusFinished},
			},
		},
	}

	var found match.Match
	err := m.mongo.Collection(matchesCollection).FindOne(ctx, filter).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}

	m.cache(ctx, &found)
	return &found, nil
}

func (m *MatchRepository) SaveMatch(ctx context.Context, play *match.Match) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := m.mongo.Collection(matchesCollection).ReplaceOne(ctx, bson.M{"key_secret": play.KeySecret}, play)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrMatchNotFound
	}

	m.cache(ctx, play)
	return nil
}

// ListFinished returns one page of finished matches, newest first, and the
// total number of finished matches.
func (m *MatchRepository) ListFinished(ctx context.Context, pageNum int, pageLimit int) ([]match.Match, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collection := m.mongo.Collection(matchesCollection)
	filter := bson.M{"status": match.StatusFinished}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count finished matches: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}}).
		SetSkip(int64((pageNum - 1) * pageLimit)).
		SetLimit(int64(pageLimit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list finished matches: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]match.Match, 0, pageLimit)
	if err = cursor.All(ctx, &result); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// FinishedSince streams every match finished after since to fn, oldest first.
func (m *MatchRepository) FinishedSince(ctx context.Context, since time.Time, fn func(*match.Match) error) error {
	collection := m.mongo.Collection(matchesCollection)
	filter := bson.M{
		"status":      match.StatusFinished,
		"finished_at": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "finished_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find finished matches: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var play match.Match
		if err = cursor.Decode(&play); err != nil {
			return err
		}
		if err = fn(&play); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func matchCacheKey(key string) string {
	return matchCachePrefix + key
}

// cache stores the match under its secret key. Cache failures only cost a
// Mongo round trip, so they are logged and dropped.
func (m *MatchRepository) cache(ctx context.Context, play *match.Match) {
	if m.redis == nil {
		return
	}
	data, err := json.Marshal(play)
	if err != nil {
		m.log.Warnw("marshal match for cache", "key", play.KeyPublic, "error", err)
		return
	}
	if err = m.redis.Set(ctx, matchCacheKey(play.KeySecret), data, m.cfg.MatchCacheTTL()).Err(); err != nil {
		m.log.Warnw("cache match", "key", play.KeyPublic, "error", err)
	}
}

func (m *MatchRepository) cached(ctx context.Context, key string) (*match.Match, bool) {
	if m.redis == nil {
		return nil, false
	}
	data, err := m.redis.Get(ctx, matchCacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.log.Warnw("read match cache", "error", err)
		}
		return nil, false
	}

	var play match.Match
	if err = json.Unmarshal(data, &play); err != nil {
		m.log.Warnw("decode cached match", "error", err)
		return nil, false
	}
	return &play, true
}
