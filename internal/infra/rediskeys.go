package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "capnego"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanLifecycle - сигналы жизненного цикла приложения-хоста (foreground/background, возврат из настроек).
	RedisChanLifecycle = RedisNamespace + ":lifecycle:signals"
)

// GetDeviceChannel Канал конкретного устройства лаборатории (если на одном Redis несколько стендов)
func GetDeviceChannel(deviceID string) string {
	if deviceID == "" {
		return RedisChanLifecycle
	}
	return fmt.Sprintf("%s:lifecycle:%s:signals", RedisNamespace, deviceID)
}
