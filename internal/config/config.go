package config

import (
	"time"
)

type ServerConfig struct {
	Port             int           `config:"port" description:"HTTP port for the server" default:"8080"`
	PublicURL        string        `config:"public-url" description:"Externally reachable base URL used in share and access links" default:"http://localhost:8080"`
	GracefulShutdown time.Duration `config:"graceful-shutdown" description:"Grace period for in-flight requests on shutdown" default:"10s"`
	ReadTimeout      time.Duration `config:"read-timeout" description:"Server read timeout" default:"1h"`
	WriteTimeout     time.Duration `config:"write-timeout" description:"Server write timeout" default:"1h"`
	CorsOrigins      []string      `config:"cors-origins" description:"Allowed CORS origins" default:"*"`
}

type LoggingConfig struct {
	Level string `config:"level" description:"Logging level" default:"info"`
	File  string `config:"file" description:"Log file path, rotated when set"`
}

type AuthConfig struct {
	Secret       string        `config:"secret" description:"HMAC secret used to verify bearer tokens" validate:"required"`
	Issuer       string        `config:"issuer" description:"Expected token issuer"`
	Audience     string        `config:"audience" description:"Expected token audience"`
	AllowedUsers []string      `config:"allowed-users" description:"Owner ids allowed to use the API (empty allows all)"`
	TokenTTL     time.Duration `config:"token-ttl" description:"Lifetime of tokens minted by the token command" default:"30d"`
}

type DBConfig struct {
	DataSource string `config:"data-source" description:"Postgres connection string (empty uses the in-memory store)"`
	Migrate    bool   `config:"migrate" description:"Apply migrations on startup" default:"true"`
	Pool       PoolConfig `config:"pool"`
}

type PoolConfig struct {
	Enable             bool          `config:"enable" description:"Enable connection pool limits" default:"true"`
	MaxOpenConnections int           `config:"max-open-connections" description:"Maximum open connections" default:"25"`
	MaxIdleConnections int           `config:"max-idle-connections" description:"Maximum idle connections" default:"25"`
	MaxLifetime        time.Duration `config:"max-lifetime" description:"Maximum connection lifetime" default:"10m"`
}

type CacheConfig struct {
	MaxSize   int    `config:"max-size" description:"In-memory cache size in bytes" default:"10485760"`
	RedisAddr string `config:"redis-addr" description:"Redis address (empty uses the in-memory cache)"`
	RedisPass string `config:"redis-pass" description:"Redis password"`
}

type StorageConfig struct {
	Backend         string        `config:"backend" description:"Blob backend: local, bolt, s3, gcs, webdav or sftp" default:"local" validate:"oneof=local bolt s3 gcs webdav sftp"`
	Timeout         time.Duration `config:"timeout" description:"Timeout for delete, stat and presign calls" default:"30s"`
	TransferTimeout time.Duration `config:"transfer-timeout" description:"Timeout for a single upload attempt" default:"1h"`
	MaxRetries      int           `config:"max-retries" description:"Retries for failed blob calls" default:"3"`
	RetryBackoff    time.Duration `config:"retry-backoff" description:"Initial backoff between blob retries" default:"200ms"`
	Rate            int           `config:"rate" description:"Blob calls per second (0 disables limiting)" default:"0"`
	RateBurst       int           `config:"rate-burst" description:"Burst for blob call limiting" default:"10"`
	AccessTTL       time.Duration `config:"access-ttl" description:"Lifetime of short-lived blob access links" default:"5m"`
	MaxUploadSize   int64         `config:"max-upload-size" description:"Maximum accepted upload size in bytes" default:"2147483648"`
	Local           LocalConfig   `config:"local"`
	Bolt            BoltConfig    `config:"bolt"`
	S3              S3Config      `config:"s3"`
	GCS             GCSConfig     `config:"gcs"`
	WebDAV          WebDAVConfig  `config:"webdav"`
	SFTP            SFTPConfig    `config:"sftp"`
}

type LocalConfig struct {
	Root string `config:"root" description:"Directory for the local backend" default:"./data/blobs"`
}

type BoltConfig struct {
	Path string `config:"path" description:"Database file for the bolt backend" default:"./data/blobs.db"`
}

type S3Config struct {
	Bucket    string `config:"bucket" description:"S3 bucket"`
	Region    string `config:"region" description:"S3 region" default:"us-east-1"`
	Endpoint  string `config:"endpoint" description:"Custom S3 endpoint (MinIO and friends)"`
	AccessKey string `config:"access-key" description:"S3 access key"`
	SecretKey string `config:"secret-key" description:"S3 secret key"`
	PathStyle bool   `config:"path-style" description:"Use path-style addressing"`
}

type GCSConfig struct {
	Bucket          string `config:"bucket" description:"GCS bucket"`
	CredentialsFile string `config:"credentials-file" description:"Service account credentials file"`
	AccessID        string `config:"access-id" description:"Service account email used for signing URLs"`
	PrivateKeyFile  string `config:"private-key-file" description:"PEM private key used for signing URLs"`
}

type WebDAVConfig struct {
	URL      string `config:"url" description:"WebDAV server URL"`
	User     string `config:"user" description:"WebDAV user"`
	Password string `config:"password" description:"WebDAV password"`
	Root     string `config:"root" description:"Base directory on the server" default:"/"`
}

type SFTPConfig struct {
	Addr                  string `config:"addr" description:"SFTP host:port"`
	User                  string `config:"user" description:"SFTP user"`
	Password              string `config:"password" description:"SFTP password"`
	KeyFile               string `config:"key-file" description:"Private key file for SFTP auth"`
	HostKey               string `config:"host-key" description:"Expected host key in authorized_keys format"`
	InsecureIgnoreHostKey bool   `config:"insecure-ignore-host-key" description:"Skip host key verification"`
	Root                  string `config:"root" description:"Base directory on the server" default:"."`
}

type TrashConfig struct {
	Retention   time.Duration `config:"retention" description:"How long trashed files are kept before purge" default:"30d"`
	BatchSize   int           `config:"batch-size" description:"Files purged per sweep batch" default:"100"`
	Concurrency int           `config:"concurrency" description:"Concurrent purges during sweeps" default:"4"`
}

type ShareConfig struct {
	Secret     string        `config:"secret" description:"Key for share token signatures (defaults to auth secret)"`
	DefaultTTL time.Duration `config:"default-ttl" description:"Share lifetime when none is requested" default:"24h"`
	MaxTTL     time.Duration `config:"max-ttl" description:"Longest allowed share lifetime" default:"30d"`
	CacheTTL   time.Duration `config:"cache-ttl" description:"How long resolved share links are cached" default:"3s"`
	Retention  time.Duration `config:"retention" description:"How long expired or revoked links are kept" default:"7d"`
}

type CronJobConfig struct {
	Enable              bool          `config:"enable" description:"Run background jobs" default:"true"`
	TrashSweepInterval  time.Duration `config:"trash-sweep-interval" description:"Interval of the trash expiry sweep" default:"1h"`
	OrphanSweepInterval time.Duration `config:"orphan-sweep-interval" description:"Interval of orphan blob reclaim" default:"6h"`
	SharePruneInterval  time.Duration `config:"share-prune-interval" description:"Interval of share link pruning" default:"12h"`
}

type ServerCmdConfig struct {
	Server   ServerConfig  `config:"server"`
	Log      LoggingConfig `config:"log"`
	Auth     AuthConfig    `config:"auth"`
	DB       DBConfig      `config:"db"`
	Cache    CacheConfig   `config:"cache"`
	Storage  StorageConfig `config:"storage"`
	Trash    TrashConfig   `config:"trash"`
	Share    ShareConfig   `config:"share"`
	CronJobs CronJobConfig `config:"cronjobs"`
}

type MigrateCmdConfig struct {
	DB  DBConfig      `config:"db"`
	Log LoggingConfig `config:"log"`
}

type CheckCmdConfig struct {
	DB      DBConfig      `config:"db"`
	Log     LoggingConfig `config:"log"`
	Storage StorageConfig `config:"storage"`
	Trash   TrashConfig   `config:"trash"`
}

type TokenCmdConfig struct {
	Auth AuthConfig    `config:"auth"`
	Log  LoggingConfig `config:"log"`
}

// ShareSecret returns the key for share token signatures.
func (c *ServerCmdConfig) ShareSecret() string {
	if c.Share.Secret != "" {
		return c.Share.Secret
	}
	return c.Auth.Secret
}
