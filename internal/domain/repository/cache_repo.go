package repository

import (
	"time"
)

// CacheRepository определяет методы для работы с кешем (черновики, публичные викторины, блокировки)
type CacheRepository interface {
	Delete(key string) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	// SetNX устанавливает ключ, только если его нет. true - ключ установлен.
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfEquals удаляет ключ, только если его значение совпадает (снятие своей блокировки)
	DeleteIfEquals(key string, value string) (bool, error)
}
