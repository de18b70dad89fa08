package service

import (
	redisx "github.com/kirinyoku/kara-go/internal/redis"
	postgres "github.com/kirinyoku/kara-go/internal/repository/postgres"
	redis "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/service/admission"
	"github.com/kirinyoku/kara-go/internal/service/query"
	"github.com/kirinyoku/kara-go/internal/service/staff"
	"github.com/kirinyoku/kara-go/internal/service/visits"
)

type Services struct {
	Visits    *visits.Service
	Admission *admission.Service
	Query     *query.Service
	Staff     *staff.Service
}

type Config struct {
	Visits visits.Config
	Query  query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.VisitsPubSub,
	limiter *redis.SlidingWindowLimiter,
	cfg Config,
) *Services {
	return &Services{
		Visits:    visits.New(store, cache, pubsub, cfg.Visits),
		Admission: admission.New(store, cache, pubsub, limiter),
		Query:     query.New(store, cache, cfg.Query),
		Staff:     staff.New(store, cache),
	}
}
