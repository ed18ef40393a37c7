// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package httpserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/gin-gonic/gin"
)

// cacheKeyFunc computes the cache key of a request. The request is not
// cached when it returns false.
type cacheKeyFunc func(gc *gin.Context) (string, bool)

// CacheByRequestPath returns a middleware caching answers by request path.
func (c *Component) CacheByRequestPath(expire time.Duration) gin.HandlerFunc {
	return c.cacheBy(expire, func(gc *gin.Context) (string, bool) {
		return gc.Request.URL.Path, true
	})
}

// CacheByRequestBody returns a middleware caching answers by request
// path and body. The body stays readable by the next handlers.
func (c *Component) CacheByRequestBody(expire time.Duration) gin.HandlerFunc {
	return c.cacheBy(expire, func(gc *gin.Context) (string, bool) {
		body, err := io.ReadAll(gc.Request.Body)
		gc.Request.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return "", false
		}
		digest := sha256.Sum256(body)
		return gc.Request.URL.Path + "-" + hex.EncodeToString(digest[:]), true
	})
}

func (c *Component) cacheBy(expire time.Duration, key cacheKeyFunc) gin.HandlerFunc {
	return cache.Cache(c.cacheStore, expire,
		cache.WithPrefixKey("cache-"),
		cache.WithLogger(cacheLogger{c}),
		cache.WithOnHitCache(func(gc *gin.Context) {
			c.metrics.cacheHit.WithLabelValues(gc.Request.URL.Path, gc.Request.Method).Inc()
		}),
		cache.WithOnMissCache(func(gc *gin.Context) {
			c.metrics.cacheMiss.WithLabelValues(gc.Request.URL.Path, gc.Request.Method).Inc()
		}),
		cache.WithCacheStrategyByRequest(func(gc *gin.Context) (bool, cache.Strategy) {
			k, ok := key(gc)
			return ok, cache.Strategy{CacheKey: k}
		}),
	)
}

// cacheLogger sends cache errors to our logger.
type cacheLogger struct {
	c *Component
}

func (l cacheLogger) Errorf(msg string, args ...interface{}) {
	l.c.r.Error().Str("cache", "http").Msgf(msg, args...)
}
