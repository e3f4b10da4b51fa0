package cart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Provider returns the store for the browser making the request.
type Provider interface {
	For(w http.ResponseWriter, r *http.Request) Store
}

func encode(items map[int64]int) ([]byte, error) {
	return json.Marshal(items)
}

func decode(data []byte) (map[int64]int, error) {
	var items map[int64]int
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return items, nil
}

// MemoryStore keeps a cart in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items map[int64]int
	// Err, when set, fails every Save and Clear.
	Err error
}

func (s *MemoryStore) Load(context.Context) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.items), nil
}

func (s *MemoryStore) Save(_ context.Context, items map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.items = maps.Clone(items)
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.items = nil
	return nil
}

// maxCookieValue is the largest encoded cart a CookieStore writes. Browsers
// drop cookies of about 4 KB without telling the server.
const maxCookieValue = 4096

// CookieStore mirrors a cart into a browser cookie.
type CookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	name   string
	maxAge time.Duration
	secure bool
}

func (s *CookieStore) Load(context.Context) (map[int64]int, error) {
	c, err := s.r.Cookie(s.name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decode(data)
}

func (s *CookieStore) Save(_ context.Context, items map[int64]int) error {
	data, err := encode(items)
	if err != nil {
		return err
	}
	value := base64.RawURLEncoding.EncodeToString(data)
	if len(value) > maxCookieValue {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(value))
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *CookieStore) Clear(context.Context) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CookieProvider keeps each browser's cart in a cookie.
type CookieProvider struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (p *CookieProvider) For(w http.ResponseWriter, r *http.Request) Store {
	return &CookieStore{w: w, r: r, name: p.Name, maxAge: p.MaxAge, secure: p.Secure}
}

// RedisStore keeps a cart under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store for one cart key.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (map[int64]int, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart/redis: get %s: %w", s.key, err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, items map[int64]int) error {
	data, err := encode(items)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cart/redis: set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("cart/redis: del %s: %w", s.key, err)
	}
	return nil
}

// RedisProvider identifies each browser by a random cookie and keeps its cart
// in Redis under that id.
type RedisProvider struct {
	Client     *redis.Client
	CookieName string
	TTL        time.Duration
	Secure     bool
}

func (p *RedisProvider) For(w http.ResponseWriter, r *http.Request) Store {
	id := ""
	if c, err := r.Cookie(p.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     p.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(p.TTL.Seconds()),
			HttpOnly: true,
			Secure:   p.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return NewRedisStore(p.Client, "cart:"+id, p.TTL)
}
