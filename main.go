// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tokenpublisher/core/publisher"
	redismirror "tokenpublisher/core/publisher/adapters/redis"
	"tokenpublisher/core/publisher/adapters/rest"
	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/appconfig"
	"tokenpublisher/modules/clock"
	"tokenpublisher/modules/db/redis"
	"tokenpublisher/modules/db/redis/counter"
	"tokenpublisher/modules/events"
	hmac_sign "tokenpublisher/modules/hmac"
	"tokenpublisher/modules/middleware"
	"tokenpublisher/modules/middleware/ratelimit"
	rl "tokenpublisher/modules/ratelimit"
	"tokenpublisher/modules/server"
	"tokenpublisher/modules/telemetry"
	"tokenpublisher/modules/webclient"

	"github.com/redis/rueidis"
)

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// cancel the context when these signals occur
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// --- application config ----
	appConfig, err := appconfig.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("error", err))
		exitCode = 1
		return
	}

	logger := appConfig.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if telemetry.DisabledFromEnv() {
		appConfig.Otel.Mode = telemetry.ModeDisabled
	}
	otelShutdown, err := telemetry.Init(ctx, appConfig.Otel)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	httpMetrics, err := telemetry.NewHTTPMetrics(appConfig.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize HTTP metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}

	publisherOpts := []domain.Option{domain.WithLogger(logger)}
	if outcomes, err := telemetry.NewOutcomeMetrics(appConfig.Otel.ServiceName); err != nil {
		slog.WarnContext(ctx, "failed to initialize publisher metrics, continuing without metrics", slog.Any("error", err))
	} else {
		publisherOpts = append(publisherOpts, domain.WithRecorder(publisher.NewRecorder(outcomes)))
	}

	// --- infrastructure ---

	transport, err := appConfig.Cloudflare.Transport()
	if err != nil {
		slog.ErrorContext(ctx, "cloudflare transport setup error", slog.Any("error", err))
		exitCode = 1
		return
	}
	factory := webclient.NewHTTPFactory(webclient.WithTimeout(appConfig.Cloudflare.Timeout))

	var redisClient rueidis.Client
	if appConfig.NeedsRedis() {
		redisClient, err = redis.NewRueidisClient(ctx, appConfig.Redis)
		if err != nil {
			slog.ErrorContext(ctx, "redis not properly setup", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer redisClient.Close()
	}

	// --- application layer ---

	descriptor := publisher.Descriptor{
		Config:     appConfig.Publisher,
		Cloudflare: appConfig.Cloudflare,
		Factory:    factory,
		Transport:  transport,
		Options:    publisherOpts,
	}

	apiOpts := []rest.Option{rest.WithLogger(logger)}

	if appConfig.Redis.Mirror {
		kv := redis.NewRedisKV(redisClient, redis.WithKeyPrefix(appConfig.Redis.MirrorPrefix))
		mirror, err := redismirror.NewMirror(kv)
		if err != nil {
			slog.ErrorContext(ctx, "redis mirror setup error", slog.Any("error", err))
			exitCode = 1
			return
		}
		descriptor.Mirrors = append(descriptor.Mirrors, mirror)
		apiOpts = append(apiOpts, rest.WithHealthCheck("redis", kv))
	}

	dispatcher := events.NewDispatcher(
		events.WithConcurrency(appConfig.Publisher.Concurrency),
		events.WithLogger(logger),
	)
	if err := dispatcher.Install(descriptor); err != nil {
		slog.ErrorContext(ctx, "publisher setup error", slog.Any("error", err))
		exitCode = 1
		return
	}

	if appConfig.HMAC.Enabled() {
		signer, err := hmac_sign.NewHMACSigner([]byte(appConfig.HMAC.Secret))
		if err != nil {
			slog.ErrorContext(ctx, "hmac signer setup error", slog.Any("error", err))
			exitCode = 1
			return
		}
		apiOpts = append(apiOpts, rest.WithSigner(signer))
	} else {
		slog.WarnContext(ctx, "WEBHOOK_HMAC_SECRET is not set, event deliveries are not authenticated")
	}

	globalMiddlewares := []func(http.Handler) http.Handler{
		middleware.Telemetry(httpMetrics),
		middleware.Tracing(appConfig.Otel.ServiceName),
		middleware.Recovery(nil),
	}

	if rlc := appConfig.RateLimit; rlc.Enabled() {
		var store rl.CounterStore = rl.NewMemoryCounter(clock.RealClockProvider())
		if rlc.Store == ratelimit.StoreRedis {
			store = counter.NewRedisCounterStore(redisClient, "webhook-rl")
		}
		limiter := rl.SlidingWindowFactory(clock.RealClockProvider(), store, appConfig.Otel.Environment)(rlc.Limit, rlc.Window)
		onlyEvents := func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, rest.EventsPrefix) }
		globalMiddlewares = append(globalMiddlewares, ratelimit.New(limiter, rlc.KeyFunc(), onlyEvents))
	}

	serverOpts := append(server.FromConfig(appConfig.Server),
		server.WithServices(rest.NewEventAPI(dispatcher, apiOpts...)),
		server.WithGlobalMiddlewares(globalMiddlewares...),
	)

	srv, err := server.New(appConfig.Server.Host, appConfig.Server.Port, serverOpts...)
	if err != nil {
		slog.ErrorContext(ctx, "init server error", slog.Any("error", err))
		exitCode = 1
		return
	}

	slog.InfoContext(ctx, "token publisher ready",
		slog.String("implementation", descriptor.ImplementationType()),
		slog.String("digest", appConfig.Publisher.Digest),
		slog.String("key_encoding", appConfig.Publisher.KeyEncoding),
		slog.Bool("redis_mirror", appConfig.Redis.Mirror),
	)

	if err := srv.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "running server error", slog.Any("error", err))
		exitCode = 1
		return
	}
}
