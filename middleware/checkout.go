package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Spare-Link/storefront/clients"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookie = "_storefront_session"
	CartCookie    = "_medusa_cart_id"
	JWTCookie     = "_medusa_jwt"
	CartIDHeader  = "X-Cart-ID"

	sessionContextKey = "sessionID"
	cartContextKey    = "cartID"
	authContextKey    = "requestAuth"
)

// Session makes sure every browser carries a checkout session id.
func Session(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, int(ttl.Seconds()), "/", "", secure, true)
		}
		c.Set(sessionContextKey, id)
		c.Next()
	}
}

// CartID resolves the cart of the request from the cart cookie or the
// X-Cart-ID header. Requests without a cart are rejected.
func CartID() gin.HandlerFunc {
	return func(c *gin.Context) {
		cartID := strings.TrimSpace(c.GetHeader(CartIDHeader))
		if cartID == "" {
			if v, err := c.Cookie(CartCookie); err == nil {
				cartID = v
			}
		}
		if cartID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No cart found for this session"})
			return
		}
		c.Set(cartContextKey, cartID)
		c.Next()
	}
}

// Auth forwards the shopper's credentials to the commerce API. Guests pass
// through with an empty token.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else if v, err := c.Cookie(JWTCookie); err == nil {
			token = v
		}
		c.Set(authContextKey, clients.RequestAuth{Token: token, CacheID: GetSessionID(c)})
		c.Next()
	}
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}

func GetCartID(c *gin.Context) string {
	return c.GetString(cartContextKey)
}

func GetAuth(c *gin.Context) clients.RequestAuth {
	if v, ok := c.Get(authContextKey); ok {
		if a, ok := v.(clients.RequestAuth); ok {
			return a
		}
	}
	return clients.RequestAuth{CacheID: GetSessionID(c)}
}
