package config

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/delivery"
	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"

	SubmitterSimulated = "simulated"
	SubmitterFull      = "full"
)

type Config struct {
	HTTPPort           string        `mapstructure:"HTTP_PORT"`
	GRPCHealthPort     string        `mapstructure:"GRPC_HEALTH_PORT"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	MaxRequestBodySize int64         `mapstructure:"MAX_REQUEST_BODY_SIZE"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`

	StorageBackend string        `mapstructure:"STORAGE_BACKEND"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisTTL       time.Duration `mapstructure:"REDIS_TTL"`
	MongoURI       string        `mapstructure:"MONGO_URI"`
	MongoDBName    string        `mapstructure:"MONGO_DB_NAME"`

	Submitter            string        `mapstructure:"SUBMITTER"`
	SimulatedDelay       time.Duration `mapstructure:"SIMULATED_DELAY"`
	SimulatedFailureRate float64       `mapstructure:"SIMULATED_FAILURE_RATE"`
	DBHost               string        `mapstructure:"DB_HOST"`
	DBPort               int           `mapstructure:"DB_PORT"`
	DBUser               string        `mapstructure:"DB_USER"`
	DBPassword           string        `mapstructure:"DB_PASSWORD"`
	DBName               string        `mapstructure:"DB_NAME"`
	MigrationsPath       string        `mapstructure:"MIGRATIONS_PATH"`
	KafkaBrokers         []string      `mapstructure:"KAFKA_BROKERS"`
	OrderTopic           string        `mapstructure:"ORDER_TOPIC"`

	CouponDBPath         string `mapstructure:"COUPON_DB_PATH"`
	CouponMigrationsPath string `mapstructure:"COUPON_MIGRATIONS_PATH"`

	ShopLat               float64 `mapstructure:"SHOP_LAT"`
	ShopLng               float64 `mapstructure:"SHOP_LNG"`
	MaxRadiusKm           float64 `mapstructure:"DELIVERY_MAX_RADIUS_KM"`
	FreeRadiusKm          float64 `mapstructure:"DELIVERY_FREE_RADIUS_KM"`
	PerKmRate             float64 `mapstructure:"DELIVERY_PER_KM_RATE"`
	DefaultDeliveryFee    float64 `mapstructure:"DELIVERY_DEFAULT_FEE"`
	FreeShippingThreshold float64 `mapstructure:"FREE_SHIPPING_THRESHOLD"`

	CartTTL             time.Duration `mapstructure:"CART_TTL"`
	ErrorTTL            time.Duration `mapstructure:"ERROR_TTL"`
	ExpiryCheckInterval time.Duration `mapstructure:"EXPIRY_CHECK_INTERVAL"`
	SessionIdleTTL      time.Duration `mapstructure:"SESSION_IDLE_TTL"`
}

func setDefaults(v *viper.Viper) {
	def := delivery.DefaultPolicy()

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_HEALTH_PORT", "50060")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 1<<20) // 1MB
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORAGE_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_TTL", 30*24*time.Hour)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "seafoodcart")

	v.SetDefault("SUBMITTER", SubmitterSimulated)
	v.SetDefault("SIMULATED_DELAY", orders.DefaultSimulatedDelay)
	v.SetDefault("SIMULATED_FAILURE_RATE", orders.DefaultSimulatedFailureRate)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "seafood_orders")
	v.SetDefault("MIGRATIONS_PATH", "internal/orders/migrations")
	v.SetDefault("KAFKA_BROKERS", []string{})
	v.SetDefault("ORDER_TOPIC", orders.DefaultOrderTopic)

	v.SetDefault("COUPON_DB_PATH", "")
	v.SetDefault("COUPON_MIGRATIONS_PATH", "internal/coupon/migrations")

	v.SetDefault("SHOP_LAT", def.Origin.Lat)
	v.SetDefault("SHOP_LNG", def.Origin.Lng)
	v.SetDefault("DELIVERY_MAX_RADIUS_KM", def.MaxRadiusKm)
	v.SetDefault("DELIVERY_FREE_RADIUS_KM", def.FreeRadiusKm)
	v.SetDefault("DELIVERY_PER_KM_RATE", def.PerKmRate.InexactFloat64())
	v.SetDefault("DELIVERY_DEFAULT_FEE", def.DefaultFee.InexactFloat64())
	v.SetDefault("FREE_SHIPPING_THRESHOLD", def.FreeShippingThreshold.InexactFloat64())

	v.SetDefault("CART_TTL", 24*time.Hour)
	v.SetDefault("ERROR_TTL", 3*time.Second)
	v.SetDefault("EXPIRY_CHECK_INTERVAL", time.Minute)
	v.SetDefault("SESSION_IDLE_TTL", 30*time.Minute)
}

// Load reads configuration from the environment, optionally layered over
// the file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.Submitter {
	case SubmitterSimulated, SubmitterFull:
	default:
		return fmt.Errorf("unknown SUBMITTER %q", c.Submitter)
	}
	if c.FreeRadiusKm > c.MaxRadiusKm {
		return fmt.Errorf("DELIVERY_FREE_RADIUS_KM (%v) exceeds DELIVERY_MAX_RADIUS_KM (%v)", c.FreeRadiusKm, c.MaxRadiusKm)
	}
	if c.SimulatedFailureRate < 0 || c.SimulatedFailureRate > 1 {
		return fmt.Errorf("SIMULATED_FAILURE_RATE must be within [0,1], got %v", c.SimulatedFailureRate)
	}
	return nil
}

func (c *Config) DeliveryPolicy() delivery.Policy {
	return delivery.Policy{
		Origin:                domain.Coordinates{Lat: c.ShopLat, Lng: c.ShopLng},
		MaxRadiusKm:           c.MaxRadiusKm,
		FreeRadiusKm:          c.FreeRadiusKm,
		PerKmRate:             decimal.NewFromFloat(c.PerKmRate),
		DefaultFee:            decimal.NewFromFloat(c.DefaultDeliveryFee),
		FreeShippingThreshold: decimal.NewFromFloat(c.FreeShippingThreshold),
	}
}

func (c *Config) OrdersCredentials() *orders.Credentials {
	return &orders.Credentials{
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		MigrationsDirPath: c.MigrationsPath,
	}
}
