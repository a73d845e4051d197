package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis
// Pub/Sub e repassa os snapshots recebidos para os clientes WebSocket
// conectados via Hub.
//
// Funcionamento:
// - Recebe mensagens JSON do canal Redis
// - Desserializa para BoardUpdate
// - Chama hub.Broadcast para enviar aos clientes inscritos
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var upd BoardUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(upd) // envia snapshot para os clientes inscritos
			}
		}
	}()
}
