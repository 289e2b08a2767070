package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"time"

	"rating-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the questionnaire from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// CacheStatus describes what a cache lookup found.
type CacheStatus int

const (
	CacheMissing CacheStatus = iota
	CacheExpired
	CacheValid
)

// QuestionCatalog caches the questionnaire in Redis as JSON and falls back to a loader on miss.
// Two copies are kept:
//
//	SET catalog:questions           {json} EX ttl+jitter
//	SET catalog:questions:persisted {json}
//
// The persisted copy never expires and is served when the loader fails after the live copy expired.
type QuestionCatalog struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCatalog(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCatalog {
	return &QuestionCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const questionsKey = "catalog:questions"

func (c *QuestionCatalog) GetQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, status := c.lookup(ctx); status == CacheValid {
		return questions, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		stale, status := c.lookup(ctx)
		if status == CacheValid {
			return stale, nil
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			if status == CacheExpired {
				log.Printf("question loader failed, serving persisted catalog: %v", err)
				return stale, nil
			}
			return nil, err
		}
		if len(questions) == 0 {
			if status == CacheExpired {
				log.Printf("question loader returned no questions, serving persisted catalog")
				return stale, nil
			}
			return nil, domain.ErrNoQuestions
		}

		if err := c.store(ctx, questions); err != nil {
			log.Printf("cache questions: %v", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the live copy so the next read goes to the loader.
func (c *QuestionCatalog) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, questionsKey).Err()
}

func (c *QuestionCatalog) lookup(ctx context.Context) ([]domain.Question, CacheStatus) {
	if questions, ok := c.read(ctx, questionsKey); ok {
		return questions, CacheValid
	}
	if questions, ok := c.read(ctx, persistedKey(questionsKey)); ok {
		return questions, CacheExpired
	}
	return nil, CacheMissing
}

func (c *QuestionCatalog) read(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read %s: %v", key, err)
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		log.Printf("decode %s: %v", key, err)
		return nil, false
	}
	return questions, true
}

func (c *QuestionCatalog) store(ctx context.Context, questions []domain.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, questionsKey, data, c.ttlWithJitter())
	pipe.Set(ctx, persistedKey(questionsKey), data, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func persistedKey(key string) string {
	return key + ":persisted"
}

func (c *QuestionCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
