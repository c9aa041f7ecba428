package authengine

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/dmarquespt/authengine/cache"
	"github.com/dmarquespt/authengine/jwt"
	"github.com/dmarquespt/authengine/password"
	"github.com/dmarquespt/authengine/store"
)

// Builder assembles an Engine from its collaborators. A Builder is
// single-use; Build rejects a second call.
type Builder struct {
	config Config

	redis   redis.UniversalClient
	durable store.Store
	hasher  password.Hasher
	regions RegionResolver
	sink    AuditSink

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the fast-store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the durable store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.durable = s
	return b
}

// WithHasher overrides the password hasher. Defaults to bcrypt.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithRegionResolver sets the IP-to-region resolver consumed by the
// suspicious-activity check. Without one the check is a no-op.
func (b *Builder) WithRegionResolver(r RegionResolver) *Builder {
	b.regions = r
	return b
}

// WithAuditSink attaches an asynchronous consumer of audit events. The
// durable audit trail is written regardless.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.durable == nil {
		return nil, errors.New("durable store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher = password.NewBcrypt(0)
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		durable:    b.durable,
		fast:       cache.NewStore(b.redis),
		hasher:     hasher,
		jwtManager: jm,
		regions:    b.regions,
		audit:      newAuditDispatcher(cfg.Audit, b.sink),
		metrics:    newMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
