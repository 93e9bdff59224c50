// Copyright 2025 LinqGate
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

package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linqgate/gateway/shared/config"
	"linqgate/gateway/shared/logger"
	"linqgate/gateway/tools"
	"linqgate/gateway/workflow"
)

// Run wires the gateway from configuration and serves until terminated.
func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[Gateway] Failed to load config %s: %v", configPath, err)
	}

	appLog := logger.New("gateway")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("[Gateway] Invalid Redis URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("[Gateway] Redis unreachable at %s: %v", redisOpts.Addr, err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatalf("[Gateway] MongoDB connection failed: %v", err)
	}
	mongoDB := mongoClient.Database(cfg.Mongo.Database)

	registry, err := tools.NewPostgresRegistry(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("[Gateway] Tool registry init failed: %v", err)
	}
	defer registry.Close()

	kv := NewRedisCache(redisClient)
	promRegistry := prometheus.NewRegistry()
	metrics := NewMetrics(promRegistry)

	gate := NewPermissionGate(NewMongoPermissionStore(mongoDB), kv,
		cfg.Gate.BypassTargets, cfg.Cache.PermissionTTL, appLog)
	respCache := NewResponseCache(kv, cfg.Cache.ResponseTTL, appLog)
	invoker := NewHTTPServiceInvoker(cfg.Server.BaseURL(), appLog)
	executor := tools.NewExecutor(appLog)

	service := NewService(gate, respCache, invoker, registry, executor, metrics, appLog)

	queue := workflow.NewQueue(
		workflow.NewRedisTaskQueue(redisClient),
		workflow.NewRedisStatusStore(redisClient, cfg.Queue.StatusTTL),
		appLog)
	execStore, err := workflow.NewMongoExecutionStore(mongoDB)
	if err != nil {
		log.Fatalf("[Gateway] Execution store init failed: %v", err)
	}
	interpreter := workflow.NewInterpreter(service, queue, execStore, appLog)
	service.SetInterpreter(interpreter)

	worker := workflow.NewWorker(queue, service, execStore, cfg.Queue.PollInterval, appLog)
	go worker.Run(ctx)
	go reportQueueDepth(ctx, queue, metrics, cfg.Queue.PollInterval)

	auth := NewAuthenticator(cfg.JWTSecret)
	server := NewServer(service, queue, execStore, registry, auth, promRegistry, appLog)
	server.CORSOrigins = cfg.Server.CORSOrigins

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		appLog.Info("", "", "Shutting down", nil)
		cancel()
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.ListenAndServe(addr); err != nil {
		log.Fatalf("[Gateway] Server failed: %v", err)
	}
}

// reportQueueDepth samples the async queue length onto the gauge.
func reportQueueDepth(ctx context.Context, queue *workflow.Queue, metrics *Metrics, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth, err := queue.Depth(ctx); err == nil {
				metrics.QueueDepth.Set(float64(depth))
			}
		}
	}
}
