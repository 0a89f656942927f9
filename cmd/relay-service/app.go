package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/dispatch"
	"relay/internal/logger"
	"relay/internal/middleware"
	"relay/pkg/circuitbreaker"
	"relay/pkg/filter"
	"relay/pkg/health"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/tracing"
	"relay/pkg/watch"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger

	producer    broker.Producer
	consumer    broker.Consumer
	dispatcher  *dispatch.Dispatcher
	redisClient *redis.Client
	server      *http.Server
	tracer      *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugared, ok := log.(*logger.SugaredLogger); ok {
		sugared.SetComponent("relay-service")
	}
	return &App{cfg: cfg, logger: log}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterDispatchMetrics()
	metrics.RegisterBrokerMetrics()
	if a.cfg.Dispatch.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	tracer, err := tracing.Init(a.cfg.Tracing, "relay-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	if err := a.initBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	a.initAdminServer()
	return nil
}

func (a *App) initBroker() error {
	producer, err := broker.NewProducer(a.cfg.Broker, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(a.cfg.Broker, a.logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	a.producer = producer
	a.consumer = consumer
	return nil
}

func (a *App) initDispatcher() error {
	watcher, err := a.buildWatcher()
	if err != nil {
		return err
	}

	middlewares := []dispatch.MiddlewareFactory{
		middleware.Logging(a.logger),
		middleware.Tracing(broker.InputTopic(a.cfg.Broker)),
	}
	if a.cfg.Dispatch.RateLimit.Enabled {
		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			Subscription: broker.InputTopic(a.cfg.Broker),
			RPS:          a.cfg.Dispatch.RateLimit.RPS,
			Burst:        a.cfg.Dispatch.RateLimit.Burst,
		}))
	}

	gracefulTimeout := a.cfg.Dispatch.GracefulTimeout
	if gracefulTimeout <= 0 {
		gracefulTimeout = constants.DefaultGracefulTimeout
	}

	a.dispatcher = dispatch.New(dispatch.Config{
		Name:            broker.InputTopic(a.cfg.Broker),
		Middlewares:     middlewares,
		Watcher:         watcher,
		GracefulTimeout: gracefulTimeout,
		Logger:          a.logger,
	})

	if err := a.registerRoutes(); err != nil {
		return err
	}

	a.dispatcher.Start()
	return nil
}

func (a *App) buildWatcher() (watch.Watcher, error) {
	cfg := a.cfg.Dispatch.Watcher

	switch cfg.Policy {
	case constants.WatcherPolicySingle:
		return watch.NewSingleAttempt(), nil
	case constants.WatcherPolicyCounter:
		return watch.NewCounter(cfg.MaxTries), nil
	case constants.WatcherPolicyRedis:
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", a.cfg.Broker.Redis.Host, a.cfg.Broker.Redis.Port),
			Password: a.cfg.Broker.Redis.Password,
			DB:       a.cfg.Broker.Redis.DB,
		})
		opts := []watch.RedisCounterOption{}
		if cfg.TTL > 0 {
			opts = append(opts, watch.WithTTL(cfg.TTL))
		}
		return watch.NewRedisCounter(a.redisClient, cfg.MaxTries, opts...), nil
	default:
		return watch.NewUnlimited(), nil
	}
}

// registerRoutes turns each configured route into one handler item: a CEL
// filter predicate plus a handler that forwards the decoded body to the
// route's output topic.
func (a *App) registerRoutes() error {
	compiler, err := filter.NewCompiler()
	if err != nil {
		return err
	}

	for _, route := range a.cfg.Dispatch.Routes {
		predicate, err := compiler.Compile(route.Filter)
		if err != nil {
			return fmt.Errorf("route %q: %w", route.Name, err)
		}

		var publisher dispatch.Publisher = broker.NewTopicPublisher(a.producer, route.OutputTopic)
		if a.cfg.Dispatch.CircuitBreaker.Enabled {
			publisher = circuitbreaker.NewPublisher(publisher,
				circuitbreaker.DefaultConfig("publish:"+route.OutputTopic))
		}

		_, err = a.dispatcher.Register(dispatch.Registration{
			Name:        route.Name,
			Description: route.Description,
			Filter:      dispatch.FilterFunc(predicate),
			Handler: func(ctx context.Context, env *models.Envelope) (*dispatch.Result, error) {
				res := &dispatch.Result{Value: env.DecodedBody}
				if env.ReplyTo != "" {
					res.Response = broker.NewTopicPublisher(a.producer, env.ReplyTo)
				}
				return res, nil
			},
			Publishers: []dispatch.Publisher{publisher},
		})
		if err != nil {
			return fmt.Errorf("route %q: %w", route.Name, err)
		}
	}

	return nil
}

func (a *App) initAdminServer() {
	registry := health.NewCheckerRegistry()
	registry.Register(health.NewSubscriptionChecker(a.dispatcher.Name(), a.dispatcher.Running))
	if a.redisClient != nil {
		registry.Register(health.NewRedisChecker(a.redisClient))
	}

	a.server = health.NewAdminServer(a.cfg.Server.Port, registry, func() []health.RouteInfo {
		items := a.dispatcher.Items()
		routes := make([]health.RouteInfo, 0, len(items))
		for _, item := range items {
			routes = append(routes, health.RouteInfo{
				Name:        item.Name(),
				Description: item.Description(),
				Publishers:  item.PublisherCount(),
			})
		}
		return routes
	})
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(gCtx, "Admin server starting", "port", a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		topic := broker.InputTopic(a.cfg.Broker)
		a.logger.InfowCtx(gCtx, "Starting broker consumer", "topic", topic)
		return a.consumer.Consume(gCtx, topic, a.dispatcher.Consume)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.shutdown()
		return nil
	})

	return g.Wait()
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down application...")

	if err := a.dispatcher.Close(shutdownCtx); err != nil {
		a.logger.Errorw("Dispatcher close error", "error", err)
	}
	if err := a.consumer.Close(); err != nil {
		a.logger.Errorw("Consumer close error", "error", err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Errorw("Producer close error", "error", err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Errorw("Redis close error", "error", err)
		}
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorw("Admin server shutdown error", "error", err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Errorw("Tracer shutdown error", "error", err)
		}
	}
}
