package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/activitysync/ActivitySync/internal/pkg/cache"
	"github.com/activitysync/ActivitySync/internal/pkg/env"
)

var sessionStore *session.Store

func NewSessionStore() *session.Store {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		// Prefer password from the underlying client if present
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Create Redis storage for sessions using database 1 (cache uses DB 0)
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // Separate database for sessions
		Reset:    false,
	})

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Hour * 24,
		KeyLookup:      "cookie:session_id",
	})

	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// GetUserID returns the logged-in user's id from the session, or 0.
func GetUserID(c *fiber.Ctx) uint {
	if sessionStore == nil {
		return 0
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return 0
	}
	if v, ok := sess.Get(UserIDKey).(uint); ok {
		return v
	}
	return 0
}

// SetUserID stores the logged-in user's id in the session
func SetUserID(c *fiber.Ctx, userID uint) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return err
	}
	sess.Set(UserIDKey, userID)
	return sess.Save()
}

// UserIDKey is the session key carrying the logged-in user's id
const UserIDKey = "user_id"
