package lifecycle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	subscribeBackoff = 5 * time.Second
	reconnectBackoff = time.Second
)

// ListenSignals - "живучая" подписка на сигналы хоста. Переподключается сама,
// после каждого успешного коннекта делает Resync. Возвращается только по ctx.
func ListenSignals(ctx context.Context, rdb *redis.Client, logger *zap.Logger, channel string, rv *Revalidator) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("lifecycle-listener").With(zap.String("chan", channel))

	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.Error(err))
			if !wait(ctx, subscribeBackoff) {
				return
			}
			continue
		}

		if err := rv.Resync(); err != nil {
			logger.Error("sync failed on reconnect", zap.Error(err))
		}
		logger.Info("subscribed to lifecycle signals")

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				sig, err := ParseSignal(msg.Payload)
				if err != nil {
					logger.Error("invalid signal format", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				rv.Handle(ctx, sig)
			}
		}

		pubsub.Close()
		if !wait(ctx, reconnectBackoff) {
			return
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
