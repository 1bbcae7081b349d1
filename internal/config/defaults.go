package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch",
}

var defaultLog = Log{
	Level:   "info",
	Backend: LogBackendSlog,
}

var defaultDispatch = Dispatch{
	CapacityLimit: 2,
	Workers:       4,
	QueueSize:     1024,
	RescanSpec:    "@every 30s",
	JobTimeout:    10 * time.Second,
	Retry: Retry{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	},
}

var defaultKafka = Kafka{
	MatchTopic: "dispatch.match-jobs",
	GroupID:    "dispatch-match-worker",
}

var defaultNotify = Notify{
	GRPCAddr:    ":9090",
	Target:      "localhost:9090",
	SendTimeout: 3 * time.Second,
	Retry: Retry{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	},
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       10,
	Burst:      20,
	TTL:        10 * time.Minute,
	MaxBuckets: 100_000,
}

var defaultPprof = Pprof{
	Enabled: false,
	Addr:    "127.0.0.1:6060",
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultLog returns the default logging settings.
func DefaultLog() Log { return defaultLog }

// DefaultDispatch returns the default dispatch settings.
func DefaultDispatch() Dispatch { return defaultDispatch }

// DefaultKafka returns the default Kafka settings (no brokers, so Kafka is off).
func DefaultKafka() Kafka { return defaultKafka }

// DefaultNotify returns the default notify settings.
func DefaultNotify() Notify { return defaultNotify }

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }

// DefaultPprof returns the default pprof settings.
func DefaultPprof() Pprof { return defaultPprof }
