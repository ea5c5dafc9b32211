package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/models"
)

// Cache key layout
const (
	authorCountKey        = "comment:author_count:%d:%s"
	authorCountGenKey     = "comment:author_count:gen"
	defaultAuthorCountTTL = 10 * time.Minute
)

// cachedCommentRepo caches per-author comment counts in redis.
// Every other call goes straight to the wrapped repository.
type cachedCommentRepo struct {
	CommentRepository
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedCommentRepo wraps inner with a redis-backed CountByAuthor cache
func NewCachedCommentRepo(inner CommentRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) CommentRepository {
	if ttl <= 0 {
		ttl = defaultAuthorCountTTL
	}
	return &cachedCommentRepo{
		CommentRepository: inner,
		rdb:               rdb,
		ttl:               ttl,
		log:               log.With().Str("component", "author_count_cache").Logger(),
	}
}

// CountByAuthor serves the count from redis, filling it from the database on a miss
func (r *cachedCommentRepo) CountByAuthor(ctx context.Context, nick, mail string) (int, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("Cache unavailable, reading count from database")
		return r.CommentRepository.CountByAuthor(ctx, nick, mail)
	}
	key := fmt.Sprintf(authorCountKey, gen, authorHash(nick, mail))

	cached, err := r.rdb.Get(ctx, key).Int()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to read cached count")
	}

	count, err := r.CommentRepository.CountByAuthor(ctx, nick, mail)
	if err != nil {
		return 0, err
	}
	if err := r.rdb.Set(ctx, key, count, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to cache count")
	}
	return count, nil
}

// Create drops the cached count of the new comment's author
func (r *cachedCommentRepo) Create(ctx context.Context, c *models.Comment) error {
	if err := r.CommentRepository.Create(ctx, c); err != nil {
		return err
	}
	gen, err := r.generation(ctx)
	if err == nil {
		err = r.rdb.Del(ctx, fmt.Sprintf(authorCountKey, gen, authorHash(c.Nick, c.Mail))).Err()
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to invalidate author count")
	}
	return nil
}

func (r *cachedCommentRepo) Update(ctx context.Context, c *models.Comment) error {
	if err := r.CommentRepository.Update(ctx, c); err != nil {
		return err
	}
	r.invalidateAll(ctx)
	return nil
}

func (r *cachedCommentRepo) Delete(ctx context.Context, id int64) error {
	if err := r.CommentRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidateAll(ctx)
	return nil
}

func (r *cachedCommentRepo) DeleteAll(ctx context.Context) error {
	if err := r.CommentRepository.DeleteAll(ctx); err != nil {
		return err
	}
	r.invalidateAll(ctx)
	return nil
}

func (r *cachedCommentRepo) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	n, err := r.CommentRepository.BatchInsert(ctx, comments)
	if err != nil {
		return n, err
	}
	r.invalidateAll(ctx)
	return n, nil
}

// generation is bumped to expire every cached count at once
func (r *cachedCommentRepo) generation(ctx context.Context) (int64, error) {
	v, err := r.rdb.Get(ctx, authorCountGenKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (r *cachedCommentRepo) invalidateAll(ctx context.Context) {
	if err := r.rdb.Incr(ctx, authorCountGenKey).Err(); err != nil {
		r.log.Warn().Err(err).Msg("Failed to bump author count generation")
	}
}

func authorHash(nick, mail string) string {
	sum := md5.Sum([]byte(nick + "\x00" + mail))
	return hex.EncodeToString(sum[:])
}
