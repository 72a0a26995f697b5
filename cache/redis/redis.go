package redis

import (
	"github.com/gomodule/redigo/redis"

	"recommendation/cache"
	C "recommendation/config"
)

func Set(key *cache.Key, value string, expiryInSecs float64) error {
	if key == nil {
		return cache.ErrorInvalidKey
	}

	if value == "" {
		return cache.ErrorInvalidValue
	}

	cKey, err := key.Key()
	if err != nil {
		return err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	if expiryInSecs == 0 {
		_, err = redisConn.Do("SET", cKey, value)
	} else {
		_, err = redisConn.Do("SET", cKey, value, "EX", int64(expiryInSecs))
	}

	return err
}

// Get returns redis.ErrNil when the key is absent.
func Get(key *cache.Key) (string, error) {
	if key == nil {
		return "", cache.ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return "", err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	return redis.String(redisConn.Do("GET", cKey))
}

func Del(key *cache.Key) error {
	if key == nil {
		return cache.ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	_, err = redisConn.Do("DEL", cKey)
	return err
}

// Exists Checks if a key exists in Redis.
func Exists(key *cache.Key) (bool, error) {
	if key == nil {
		return false, cache.ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return false, err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	count, err := redis.Int64(redisConn.Do("EXISTS", cKey))
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// IsNotFound reports whether err is the redigo miss returned by Get.
func IsNotFound(err error) bool {
	return err == redis.ErrNil
}
