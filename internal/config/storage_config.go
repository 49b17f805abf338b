package config

const (
	storageDriverVar = "KAIZEN_STORAGE_DRIVER"
	storagePathVar   = "KAIZEN_STORAGE_PATH"
	storageKeyVar    = "KAIZEN_STORAGE_KEY"
	redisAddrVar     = "KAIZEN_REDIS_ADDR"
	redisPasswordVar = "KAIZEN_REDIS_PASSWORD"
	redisDBVar       = "KAIZEN_REDIS_DB"
	redisPrefixVar   = "KAIZEN_REDIS_PREFIX"
)

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageDriver is one of "memory", "bolt" or "redis".
func (Storage) GetStorageDriver() string {
	return GetEnv(storageDriverVar, "bolt")
}

func (Storage) GetStoragePath() string {
	return GetEnv(storagePathVar, "./data/kaizen.db")
}

// GetStorageKey is the fixed key the session record is persisted under.
func (Storage) GetStorageKey() string {
	return GetEnv(storageKeyVar, "auth-storage")
}

func (Storage) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv(redisPasswordVar, "")
}

func (Storage) GetRedisDB() int {
	return GetEnvInt(redisDBVar, 0)
}

func (Storage) GetRedisPrefix() string {
	return GetEnv(redisPrefixVar, "kaizen:")
}
