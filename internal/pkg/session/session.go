package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

// AdminCookie carries the admin session id.
const AdminCookie = "admin"

const adminKey = "is_admin"

// AdminSessions issues and checks the admin login session.
type AdminSessions struct {
	store *session.Store
}

// RedisStorage stores sessions next to the cache, in database 1 (the cache
// uses DB 0).
func RedisStorage(client *goredis.Client) fiber.Storage {
	host, port, password := "localhost", 6379, ""
	if client != nil {
		opts := client.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		password = opts.Password
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

// NewAdminSessions builds the admin session store. A nil storage keeps
// sessions in memory.
func NewAdminSessions(cfg config.AdminConfig, secure bool, storage fiber.Storage) *AdminSessions {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AdminSessions{
		store: session.New(session.Config{
			Storage:        storage,
			Expiration:     ttl,
			KeyLookup:      "cookie:" + AdminCookie,
			CookieHTTPOnly: true,
			CookieSecure:   secure,
			CookieSameSite: fiber.CookieSameSiteLaxMode,
			CookiePath:     "/",
		}),
	}
}

// Login marks the session as admin. The session id is regenerated so a
// pre-login cookie cannot be reused.
func (a *AdminSessions) Login(c *fiber.Ctx) error {
	sess, err := a.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(adminKey, true)
	return sess.Save()
}

func (a *AdminSessions) Logout(c *fiber.Ctx) error {
	sess, err := a.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Destroy()
}

func (a *AdminSessions) IsAdmin(c *fiber.Ctx) bool {
	if a == nil || a.store == nil {
		return false
	}
	sess, err := a.store.Get(c)
	if err != nil {
		return false
	}
	v, ok := sess.Get(adminKey).(bool)
	return ok && v
}
