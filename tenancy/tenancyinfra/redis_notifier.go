package tenancyinfra

import (
	"context"
	"encoding/json"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisNotifier difunde los cambios del registro por pub/sub para que las
// otras réplicas invaliden su caché de dominios
type RedisNotifier struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisNotifier crea el notificador; origin identifica a esta réplica
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin retorna el identificador de esta réplica
func (n *RedisNotifier) Origin() string { return n.origin }

// Publish publica un cambio confirmado
func (n *RedisNotifier) Publish(ctx context.Context, change tenancy.Change) error {
	change.Origin = n.origin
	payload, err := json.Marshal(change)
	if err != nil {
		return errx.Wrap(err, "failed to encode registry change", errx.TypeInternal)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return errx.Wrap(err, "failed to publish registry change", errx.TypeExternal).
			WithDetail("channel", n.channel)
	}
	return nil
}

// Subscribe escucha cambios de otras réplicas hasta que ctx termine.
// Retorna cuando la suscripción está confirmada.
func (n *RedisNotifier) Subscribe(ctx context.Context, handle func(tenancy.Change)) error {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return errx.Wrap(err, "failed to subscribe to registry changes", errx.TypeExternal).
			WithDetail("channel", n.channel)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change tenancy.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.logger.Warn("discarding malformed registry change", zap.Error(err))
					continue
				}
				if change.Origin == n.origin {
					continue
				}
				handle(change)
			}
		}
	}()

	return nil
}
