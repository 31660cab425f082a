package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

/*
WithEnvOverrides layers process environment variables on top of an
already-built Config, following the same override-only-if-set discipline
newConfigFromDTO uses for config files: a variable that is unset or empty
never touches the field it maps to.

Recognized variables:

  - PORT                      -> HttpPort
  - LOG_LEVEL                 -> LogLevel
  - MONGODB_URI               -> reserved for a future document-store backend
  - SEARCH_REDIS_URI          -> IndexerUrl (used for the best-effort search-index push)
  - SEARCH_INDEX_NAME         -> IndexerIndexName
  - BROWSERLESS_URL           -> BrowserlessUrl (also flips SpaRenderingEnabled on)
  - CRAWL_MAX_SESSIONS        -> MaxConcurrentSessions
  - CRAWL_DEFAULT_UA          -> UserAgent
  - ROBOTS_CACHE_TTL_SECONDS  -> RobotsCacheTtl
  - BADGER_DATA_DIR           -> BadgerDataDir
*/
func WithEnvOverrides(cfg Config) (Config, error) {
	if v, ok := lookupNonEmpty("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: PORT must be an integer: %s", ErrInvalidConfig, err.Error())
		}
		cfg.httpPort = port
	}

	if v, ok := lookupNonEmpty("CRAWL_DEFAULT_UA"); ok {
		cfg.userAgent = v
	}

	if v, ok := lookupNonEmpty("BADGER_DATA_DIR"); ok {
		cfg.badgerDataDir = v
	}

	if v, ok := lookupNonEmpty("BROWSERLESS_URL"); ok {
		cfg.browserlessUrl = v
		cfg.spaRenderingEnabled = true
	}

	if v, ok := lookupNonEmpty("CRAWL_MAX_SESSIONS"); ok {
		maxSessions, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: CRAWL_MAX_SESSIONS must be an integer: %s", ErrInvalidConfig, err.Error())
		}
		cfg.maxConcurrentSessions = maxSessions
	}

	if v, ok := lookupNonEmpty("ROBOTS_CACHE_TTL_SECONDS"); ok {
		ttlSeconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: ROBOTS_CACHE_TTL_SECONDS must be an integer: %s", ErrInvalidConfig, err.Error())
		}
		cfg.robotsCacheTtl = time.Duration(ttlSeconds) * time.Second
	}

	if v, ok := lookupNonEmpty("LOG_LEVEL"); ok {
		cfg.logLevel = v
	}

	if v, ok := lookupNonEmpty("SEARCH_REDIS_URI"); ok {
		cfg.indexerUrl = v
	}

	if v, ok := lookupNonEmpty("SEARCH_INDEX_NAME"); ok {
		cfg.indexerIndexName = v
	}

	// MONGODB_URI is accepted for forward-compatibility with a Mongo-backed
	// document store but the store writer targets badgerhold; nothing reads
	// this field yet.
	if v, ok := lookupNonEmpty("MONGODB_URI"); ok {
		cfg.mongoUri = v
	}

	return cfg, nil
}

func lookupNonEmpty(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
